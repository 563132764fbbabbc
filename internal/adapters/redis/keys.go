package redis

// Reference data keys.
const (
	KeySalesData            = "sales_data"
	KeyOutlets              = "outlets"
	KeyProducts             = "products"
	KeyAdminWhatsAppNumber  = "admin_whatsapp_number"
	KeyNotificationTemplate = "notification_template"
)
