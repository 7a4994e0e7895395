package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/flowtree/internal/engine"
	"github.com/roach88/flowtree/internal/ir"
)

type (
	// ErrorResponse is the body of every failed request
	ErrorResponse struct {
		Error  string      `json:"error"`
		Code   engine.Code `json:"code,omitempty"`
		Status int         `json:"status"`
	}

	HealthResponse struct {
		Service string `json:"service"`
		Status  string `json:"status"`
	}

	// FlowRef accepts a flow id given either as a JSON string or number
	FlowRef string

	InsertMessageRequest struct {
		FlowID     FlowRef    `json:"flowId"`
		Identifier string     `json:"identifier"`
		Content    ir.Content `json:"content"`
	}

	InsertMessageResponse struct {
		Message string     `json:"message"`
		Data    ir.Message `json:"data"`
	}

	DeleteMessageResponse struct {
		Message        string `json:"message"`
		DeletedMessage string `json:"deletedMessage"`
	}

	DeleteFlowMessagesResponse struct {
		Message string `json:"message"`
		Count   int    `json:"count"`
	}

	UpdateMessageRequest struct {
		Identifier string      `json:"identifier"`
		Content    *ir.Content `json:"content"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	InsertMainFlowRequest struct {
		FlowID  FlowRef    `json:"flowId"`
		Content ir.Content `json:"content"`
	}

	ExchangeFlowsRequest struct {
		FlowIDA FlowRef `json:"flowIdA"`
		FlowIDB FlowRef `json:"flowIdB"`
	}

	FlowsListResponse struct {
		Flows []engine.FlowSummary `json:"flows"`
		Count int                  `json:"count"`
	}

	VerifyResponse struct {
		OK         bool               `json:"ok"`
		Violations []engine.Violation `json:"violations"`
	}
)

// UnmarshalJSON implements json.Unmarshaler
func (f *FlowRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlowRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flow id must be a string or number: %w", err)
	}
	if _, err := strconv.Atoi(n.String()); err != nil {
		return fmt.Errorf("flow id must be an integer: %s", n)
	}
	*f = FlowRef(n.String())
	return nil
}

// Parse resolves the reference to a flow id
func (f FlowRef) Parse() (ir.FlowID, error) {
	return engine.ParseFlow(string(f))
}
