// Package queue encodes and decodes the Celery-compatible task message
// format expected by the worker runtime, ported bit-for-bit from
// original_source/backtest/task_helper.py's send_task.
//
// This format is externally fixed (spec §6.2): field names, the
// base64(json([args, kwargs, {}])) body shape, and UUID-v4 identifiers
// must match exactly for interoperability with the existing worker
// runtime.
package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Headers mirrors the Celery protocol-2 header block.
type Headers struct {
	Lang              string      `json:"lang"`
	Task              string      `json:"task"`
	ID                string      `json:"id"`
	Shadow            interface{} `json:"shadow"`
	ETA               interface{} `json:"eta"`
	Expires           interface{} `json:"expires"`
	Group             interface{} `json:"group"`
	GroupIndex        interface{} `json:"group_index"`
	Retries           int         `json:"retries"`
	Timelimit         [2]interface{} `json:"timelimit"`
	RootID            string      `json:"root_id"`
	ParentID          interface{} `json:"parent_id"`
	ArgsRepr          string      `json:"argsrepr"`
	KwargsRepr        string      `json:"kwargsrepr"`
	Origin            string      `json:"origin"`
	IgnoreResult      bool        `json:"ignore_result"`
	ReplacedNesting   int         `json:"replaced_task_nesting"`
	StampedHeaders    interface{} `json:"stamped_headers"`
	Stamps            map[string]interface{} `json:"stamps"`
}

// DeliveryInfo carries the AMQP-style routing metadata Celery embeds
// even when talking directly to Redis.
type DeliveryInfo struct {
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routing_key"`
}

// Properties mirrors the Celery protocol-2 properties block.
type Properties struct {
	CorrelationID string       `json:"correlation_id"`
	ReplyTo       string       `json:"reply_to"`
	DeliveryMode  int          `json:"delivery_mode"`
	DeliveryInfo  DeliveryInfo `json:"delivery_info"`
	Priority      int          `json:"priority"`
	BodyEncoding  string       `json:"body_encoding"`
	DeliveryTag   string       `json:"delivery_tag"`
}

// Message is the full wire envelope pushed onto a broker LIST.
type Message struct {
	Body            string     `json:"body"`
	ContentEncoding string     `json:"content-encoding"`
	ContentType     string     `json:"content-type"`
	Headers         Headers    `json:"headers"`
	Properties      Properties `json:"properties"`
}

// BuildTask constructs a Celery-compatible task message for taskName
// on queue, carrying kwargs as the task's keyword arguments. args is
// always empty for this system (spec §6.2: "args is usually empty").
func BuildTask(queueName, taskName string, kwargs map[string]interface{}) (*Message, error) {
	taskID := uuid.New().String()
	deliveryTag := uuid.New().String()
	replyTo := uuid.New().String()

	args := []interface{}{}
	bodyTriple := []interface{}{args, kwargs, map[string]interface{}{}}
	bodyJSON, err := json.Marshal(bodyTriple)
	if err != nil {
		return nil, fmt.Errorf("marshal task body: %w", err)
	}
	body := base64.StdEncoding.EncodeToString(bodyJSON)

	argsRepr, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal argsrepr: %w", err)
	}
	kwargsRepr, err := json.Marshal(kwargs)
	if err != nil {
		return nil, fmt.Errorf("marshal kwargsrepr: %w", err)
	}

	hostname, _ := os.Hostname()

	return &Message{
		Body:            body,
		ContentEncoding: "utf-8",
		ContentType:     "application/json",
		Headers: Headers{
			Lang:            "py",
			Task:            taskName,
			ID:              taskID,
			Retries:         0,
			Timelimit:       [2]interface{}{nil, nil},
			RootID:          taskID,
			ArgsRepr:        string(argsRepr),
			KwargsRepr:      string(kwargsRepr),
			Origin:          fmt.Sprintf("%d@%s", os.Getpid(), hostname),
			IgnoreResult:    false,
			ReplacedNesting: 0,
			Stamps:          map[string]interface{}{},
		},
		Properties: Properties{
			CorrelationID: taskID,
			ReplyTo:       replyTo,
			DeliveryMode:  2,
			DeliveryInfo: DeliveryInfo{
				Exchange:   "",
				RoutingKey: queueName,
			},
			Priority:     0,
			BodyEncoding: "base64",
			DeliveryTag:  deliveryTag,
		},
	}, nil
}

// Encode serializes a Message to the JSON bytes pushed onto the
// broker LIST.
func Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeKwargs extracts the task kwargs a worker needs to run a
// backtest, decoding the base64(json([args, kwargs, {}])) body.
func DecodeKwargs(m *Message, out interface{}) error {
	raw, err := base64.StdEncoding.DecodeString(m.Body)
	if err != nil {
		return fmt.Errorf("decode body: %w", err)
	}

	var triple [3]json.RawMessage
	if err := json.Unmarshal(raw, &triple); err != nil {
		return fmt.Errorf("unmarshal body triple: %w", err)
	}

	return json.Unmarshal(triple[1], out)
}

// Decode parses a raw broker payload into a Message.
func Decode(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &m, nil
}
