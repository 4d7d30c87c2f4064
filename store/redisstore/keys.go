package redisstore

import "fmt"

func paymentKey(prefix, authorizationID string) string {
	return fmt.Sprintf("%vpayment:%v", prefix, authorizationID)
}

// paymentByOrderKey maps an order to its authorization id
func paymentByOrderKey(prefix, orderID string) string {
	return fmt.Sprintf("%vpayment-by-order:%v", prefix, orderID)
}

// paymentsKey is the set of all authorization ids
func paymentsKey(prefix string) string {
	return prefix + "payments"
}

func stockKey(prefix, sku string) string {
	return fmt.Sprintf("%vstock:%v", prefix, sku)
}

func reservationKey(prefix, orderID string) string {
	return fmt.Sprintf("%vreservation:%v", prefix, orderID)
}

func reportKey(prefix, date string) string {
	return fmt.Sprintf("%vreport:%v", prefix, date)
}

func notificationKey(prefix, key string) string {
	return fmt.Sprintf("%vnotification:%v", prefix, key)
}

// notificationsKey is the list of notifications sent to a recipient
func notificationsKey(prefix, recipient string) string {
	return fmt.Sprintf("%vnotifications:%v", prefix, recipient)
}

// runsKey is the hash from workflow id to the execution id of its first run
func runsKey(prefix string) string {
	return prefix + "runs"
}
