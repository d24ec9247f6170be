package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"payment-service/internal/domain"
	"payment-service/internal/gateway"

	"github.com/xeipuuv/gojsonschema"
)

const (
	itemReceipt   = "MpesaReceiptNumber"
	itemAmount    = "Amount"
	itemDate      = "TransactionDate"
	itemPhone     = "PhoneNumber"
	resultSuccess = 0
)

const callbackSchemaJSON = `{
  "type": "object",
  "required": ["Body"],
  "properties": {
    "Body": {
      "type": "object",
      "required": ["stkCallback"],
      "properties": {
        "stkCallback": {
          "type": "object",
          "required": ["CheckoutRequestID", "ResultCode"],
          "properties": {
            "MerchantRequestID": {"type": "string"},
            "CheckoutRequestID": {"type": "string", "minLength": 1},
            "ResultCode": {"type": "integer"},
            "ResultDesc": {"type": "string"},
            "CallbackMetadata": {
              "type": "object",
              "properties": {
                "Item": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["Name"],
                    "properties": {"Name": {"type": "string"}}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

var callbackSchema = mustSchema(callbackSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("mpesa: callback schema: %v", err))
	}
	return s
}

type callbackEnvelope struct {
	Body struct {
		StkCallback stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []metadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type metadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// CallbackResult is the flattened push notification.
type CallbackResult struct {
	SessionID            string
	ResultCode           int
	ResultDesc           string
	ReceiptID            string
	Amount               int64
	TransactionTimestamp string
	PhoneNumber          string
}

// ParseCallback validates the nested envelope and extracts the metadata
// items by name.
func ParseCallback(body []byte) (*CallbackResult, error) {
	res, err := callbackSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCallback, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedCallback, strings.Join(msgs, "; "))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCallback, err)
	}

	cb := env.Body.StkCallback
	out := &CallbackResult{
		SessionID:  cb.CheckoutRequestID,
		ResultCode: cb.ResultCode,
		ResultDesc: cb.ResultDesc,
	}
	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			switch item.Name {
			case itemReceipt:
				out.ReceiptID = valueString(item.Value)
			case itemDate:
				out.TransactionTimestamp = valueString(item.Value)
			case itemPhone:
				out.PhoneNumber = valueString(item.Value)
			case itemAmount:
				out.Amount = valueAmount(item.Value)
			}
		}
	}
	return out, nil
}

func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func valueAmount(v any) int64 {
	s := valueString(v)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f))
}

// Outcome maps the gateway result code onto a terminal outcome.
func (r *CallbackResult) Outcome() (domain.Outcome, error) {
	if r.ResultCode == resultSuccess {
		if r.ReceiptID == "" {
			return domain.Outcome{}, fmt.Errorf("%w: success without %s", domain.ErrMalformedCallback, itemReceipt)
		}
		return domain.Success(r.ReceiptID, r.TransactionTimestamp), nil
	}
	reason := r.ResultDesc
	if reason == "" {
		reason = "Payment was not completed"
	}
	return domain.Failure(reason), nil
}

func (c *Client) Reconcile(_ http.Header, body []byte) (*gateway.Notification, error) {
	res, err := ParseCallback(body)
	if err != nil {
		return nil, err
	}
	outcome, err := res.Outcome()
	if err != nil {
		return nil, err
	}
	return &gateway.Notification{
		SessionID: res.SessionID,
		Outcome:   outcome,
		Amount:    res.Amount * minorPerShilling,
		Phone:     res.PhoneNumber,
	}, nil
}
