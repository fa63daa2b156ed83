package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypePurchaseCompleted NotificationType = "purchase_completed"
	NotificationTypeRefundApproved    NotificationType = "refund_approved"
	NotificationTypeRefundRejected    NotificationType = "refund_rejected"
)

type inboxEntry struct {
	title string
	link  string
}

// Inbox title and the page the notification opens.
var notificationInbox = map[NotificationType]inboxEntry{
	NotificationTypePurchaseCompleted: {title: "Purchase complete", link: "/library"},
	NotificationTypeRefundApproved:    {title: "Refund approved", link: "/refunds"},
	NotificationTypeRefundRejected:    {title: "Refund rejected", link: "/refunds"},
}

func (n NotificationType) IsValid() bool {
	_, ok := notificationInbox[n]
	return ok
}

func (n NotificationType) Title() string { return notificationInbox[n].title }

func (n NotificationType) Link() string { return notificationInbox[n].link }
