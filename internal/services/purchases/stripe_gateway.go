package purchases

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway drives Stripe hosted checkout. Purchase, course and user
// ids travel in the session metadata so an event can always be traced
// back to its local record.
type StripeGateway struct {
	api            *stripeclient.API
	webhookSecret  string
	currency       string
	allowedCountry string
}

type StripeGatewayConfig struct {
	SecretKey      string
	WebhookSecret  string
	Currency       string
	AllowedCountry string
	HTTPClient     *http.Client
}

func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is empty")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("stripe webhook secret is empty")
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "inr"
	}
	country := strings.ToUpper(strings.TrimSpace(cfg.AllowedCountry))
	if country == "" {
		country = "IN"
	}

	var backends *stripe.Backends
	if cfg.HTTPClient != nil {
		backends = stripe.NewBackends(cfg.HTTPClient)
	}

	return &StripeGateway{
		api:            stripeclient.New(cfg.SecretKey, backends),
		webhookSecret:  cfg.WebhookSecret,
		currency:       currency,
		allowedCountry: country,
	}, nil
}

func (g *StripeGateway) CreateSession(ctx context.Context, input SessionInput) (Session, error) {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(input.CourseTitle),
	}
	if input.ThumbnailURL != "" {
		product.Images = stripe.StringSlice([]string{input.ThumbnailURL})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(g.currency),
					UnitAmount:  stripe.Int64(input.AmountMinor),
					ProductData: product,
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{g.allowedCountry}),
		},
	}
	params.Context = ctx
	params.AddMetadata("purchase_id", strconv.FormatInt(input.PurchaseID, 10))
	params.AddMetadata("course_id", strconv.FormatInt(input.CourseID, 10))
	params.AddMetadata("user_id", strconv.FormatInt(input.UserID, 10))

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create stripe checkout session: %w", err)
	}

	return Session{
		ID:  session.ID,
		URL: session.URL,
	}, nil
}

func (g *StripeGateway) VerifyEvent(payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("construct stripe event: %w", err)
	}

	var session struct {
		ID string `json:"id"`
	}
	if event.Data != nil {
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return Event{}, fmt.Errorf("decode stripe event object: %w", err)
		}
	}

	return Event{
		Type:      string(event.Type),
		SessionID: session.ID,
	}, nil
}
