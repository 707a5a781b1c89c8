package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// GatewayResponse is the bank's answer to an order registration.
type GatewayResponse struct {
	OrderID      string
	FormURL      string
	ErrorCode    string
	ErrorMessage string
	Raw          json.RawMessage
}

// Accepted reports whether the gateway assigned an order id without an error.
func (r *GatewayResponse) Accepted() bool {
	return r.OrderID != "" && (r.ErrorCode == "" || r.ErrorCode == "0")
}

// BankGateway registers orders with the external payment gateway.
type BankGateway interface {
	Register(ctx context.Context, fields map[string]string) (*GatewayResponse, error)
}

// BankClient posts registration requests to the gateway's register endpoint.
type BankClient struct {
	registerURL string
	httpClient  *http.Client
}

// NewBankClient creates a BankClient with the given request timeout.
func NewBankClient(registerURL string, timeout time.Duration) *BankClient {
	return &BankClient{
		registerURL: registerURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Register sends the fields as multipart form data and decodes the JSON reply.
func (c *BankClient) Register(ctx context.Context, fields map[string]string) (*GatewayResponse, error) {
	body, contentType, err := encodeForm(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: encode form: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.registerURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: gateway request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read gateway response: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: gateway status %d, body: %s", ErrUpstream, resp.StatusCode, string(raw))
	}

	return decodeGatewayResponse(raw)
}

func encodeForm(fields map[string]string) (*bytes.Buffer, string, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func decodeGatewayResponse(raw []byte) (*GatewayResponse, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		// Relay the body as text; without an order id nothing is persisted.
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("[Gateway] response is not a JSON object")
		text, _ := json.Marshal(string(raw))
		return &GatewayResponse{Raw: json.RawMessage(text)}, nil
	}

	formURL := stringField(body, "formUrl")
	if formURL == "" {
		formURL = stringField(body, "formURL")
	}

	return &GatewayResponse{
		OrderID:      stringField(body, "orderId"),
		FormURL:      formURL,
		ErrorCode:    stringField(body, "errorCode"),
		ErrorMessage: stringField(body, "errorMessage"),
		Raw:          json.RawMessage(raw),
	}, nil
}

// stringField reads a JSON value as text; numbers are formatted without exponent.
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(Stringify(v))
}

// Stringify renders a decoded JSON value as a form field value.
func Stringify(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(vv)
	case json.Number:
		return vv.String()
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv)
		}
		return string(b)
	}
}
