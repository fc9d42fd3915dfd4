package contracts

import "github.com/julienschmidt/httprouter"

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// WebhookHandler is implemented by handlers that receive gateway callbacks.
// Webhook routes are served outside the caller-authenticated chain.
type WebhookHandler interface {
	RegisterWebhookRoutes(*httprouter.Router)
}
