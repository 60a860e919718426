package ussd

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gkash/ussd/backend/internal/model/ussd"
	"github.com/gkash/ussd/backend/pkg/utils"
)

const maxBodyBytes = 64 << 10

// Dispatcher advances a dialogue by one round trip.
type Dispatcher interface {
	Handle(ctx context.Context, sessionID, phoneNumber, text string) string
}

// Handler adapts gateway callbacks to the dispatcher.
type Handler struct {
	dispatcher Dispatcher
}

// New creates a USSD gateway handler.
func New(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// RegisterRoutes registers the gateway callback.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ussd", h.handleCallback)
}

// callbackPayload accepts both field naming conventions used by gateways.
type callbackPayload struct {
	SessionID      string `json:"sessionId"`
	SessionIDAlt   string `json:"SessionId"`
	PhoneNumber    string `json:"phoneNumber"`
	MSISDN         string `json:"msisdn"`
	Text           string `json:"text"`
	TextAlt        string `json:"Text"`
	ServiceCode    string `json:"serviceCode"`
	ServiceCodeAlt string `json:"ServiceCode"`
}

func (p callbackPayload) request() ussd.Request {
	return ussd.Request{
		SessionID:   firstNonEmpty(p.SessionID, p.SessionIDAlt),
		PhoneNumber: firstNonEmpty(p.PhoneNumber, p.MSISDN),
		Text:        firstNonEmpty(p.Text, p.TextAlt),
		ServiceCode: firstNonEmpty(p.ServiceCode, p.ServiceCodeAlt),
	}
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		log.Printf("[ussd] failed to decode callback: %v", err)
	}
	if err != nil || !req.Valid() {
		utils.RespondText(w, http.StatusOK, ussd.End("Invalid request"))
		return
	}

	log.Printf("[ussd] session=%s code=%s phone=%s text=%q", req.SessionID, req.ServiceCode, req.PhoneNumber, req.Text)
	resp := h.dispatcher.Handle(r.Context(), req.SessionID, req.PhoneNumber, req.Text)
	utils.RespondText(w, http.StatusOK, resp)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (ussd.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var payload callbackPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && err != io.EOF {
			return ussd.Request{}, err
		}
		return payload.request(), nil
	}

	if err := r.ParseForm(); err != nil {
		return ussd.Request{}, err
	}
	payload := callbackPayload{
		SessionID:      r.Form.Get("sessionId"),
		SessionIDAlt:   r.Form.Get("SessionId"),
		PhoneNumber:    r.Form.Get("phoneNumber"),
		MSISDN:         r.Form.Get("msisdn"),
		Text:           r.Form.Get("text"),
		TextAlt:        r.Form.Get("Text"),
		ServiceCode:    r.Form.Get("serviceCode"),
		ServiceCodeAlt: r.Form.Get("ServiceCode"),
	}
	return payload.request(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
