package message

import (
	"encoding/json"
	"log/slog"

	"github.com/codemonkey800/claude-code-web/internal/errors"
)

// Parse classifies a decoded JSON object into a Message variant.
//
// Unrecognized types are not an error; they become *UnknownMessage so new
// CLI output survives unchanged. Parse fails only when "type" is missing or
// not a string. Typed fields are best-effort: a field of an unexpected shape
// is left at its zero value and the line is still classified.
func Parse(log *slog.Logger, data map[string]any) (Message, error) {
	msgType, ok := data["type"].(string)
	if !ok || msgType == "" {
		log.Debug("Message missing 'type' field")

		return nil, &errors.MessageParseError{
			Message: "missing or invalid 'type' field",
			Data:    data,
		}
	}

	subtype, _ := data["subtype"].(string)
	token, _ := data["session_id"].(string)

	switch msgType {
	case TypeSystem:
		return &SystemMessage{Subtype: subtype, Token: token, Data: data}, nil
	case TypeAssistant:
		return parseAssistantMessage(data, token), nil
	case TypeUser:
		return &UserMessage{Token: token, Data: data}, nil
	case TypeResult:
		return parseResultMessage(data, subtype, token), nil
	default:
		log.Debug("Forwarding unmodeled message type", "message_type", msgType)

		return &UnknownMessage{Type: msgType, Subtype: subtype, Token: token, Data: data}, nil
	}
}

func parseAssistantMessage(data map[string]any, token string) *AssistantMessage {
	msg := &AssistantMessage{Token: token, Data: data}

	if inner, ok := data["message"].(map[string]any); ok {
		msg.Model, _ = inner["model"].(string)
	}

	return msg
}

func parseResultMessage(data map[string]any, subtype, token string) *ResultMessage {
	msg := &ResultMessage{
		Subtype:    subtype,
		Token:      token,
		DurationMs: intField(data, "duration_ms"),
		NumTurns:   intField(data, "num_turns"),
		Data:       data,
	}

	msg.IsError, _ = data["is_error"].(bool)

	if cost, ok := data["total_cost_usd"].(float64); ok {
		msg.TotalCostUSD = &cost
	}

	if result, ok := data["result"].(string); ok {
		msg.Result = &result
	}

	return msg
}

// intField reads a JSON number as an int, truncating fractions.
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case json.Number:
		f, _ := v.Float64()

		return int(f)
	default:
		return 0
	}
}
