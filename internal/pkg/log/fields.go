/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log Fields.
const (
	FieldURI             = "uri"
	FieldConfig          = "config"
	FieldServiceEndpoint = "service-endpoint"
	FieldRequestURL      = "request-url"
	FieldRequestHeaders  = "request-headers"
	FieldRequestBody     = "request-body"
	FieldResponse        = "response"
	FieldHTTPStatus      = "http-status"
	FieldParameter       = "parameter"
	FieldProcessID       = "process-id"
	FieldProviderPID     = "provider-pid"
	FieldConsumerPID     = "consumer-pid"
	FieldGrantID         = "grant-id"
	FieldInteractRef     = "interact-ref"
	FieldRole            = "role"
	FieldState           = "state"
	FieldFromState       = "from-state"
	FieldToState         = "to-state"
	FieldMessageType     = "message-type"
	FieldDirection       = "direction"
	FieldCallbackAddress = "callback-address"
	FieldParticipant     = "participant"
	FieldAgreementID     = "agreement-id"
	FieldSessionID       = "session-id"
	FieldSubscriberID    = "subscriber-id"
	FieldCategory        = "category"
	FieldOperation       = "operation"
	FieldRetryCount      = "retry-count"
	FieldHash            = "hash"
	FieldDuration        = "duration"
	FieldEnabled         = "enabled"
	FieldTracingProvider = "tracing-provider"
	FieldServiceName     = "service-name"
	FieldTotal           = "total"
	FieldTopic           = "topic"
	FieldIndex           = "index"
	FieldSize            = "size"
	FieldMessageID       = "message-id"
	FieldTaskID          = "task-id"
	FieldInstanceID      = "instance-id"
	FieldPermitHolder    = "permit-holder"
	FieldStoreName       = "store-name"
	FieldLogSpec         = "log-spec"
)

// WithError sets the error field.
func WithError(err error) zap.Field {
	return zap.Error(err)
}

// WithRequestURL sets the request-url field.
func WithRequestURL(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldRequestURL, value)
}

// WithRequestURLString sets the request-url field.
func WithRequestURLString(value string) zap.Field {
	return zap.String(FieldRequestURL, value)
}

// WithRequestHeaders sets the request-headers field.
func WithRequestHeaders(value http.Header) zap.Field {
	return zap.Object(FieldRequestHeaders, newHTTPHeaderMarshaller(value))
}

// WithRequestBody sets the request-body field.
func WithRequestBody(value []byte) zap.Field {
	return zap.String(FieldRequestBody, string(value))
}

// WithResponse sets the response field.
func WithResponse(value []byte) zap.Field {
	return zap.String(FieldResponse, string(value))
}

// WithServiceEndpoint sets the service-endpoint field.
func WithServiceEndpoint(value string) zap.Field {
	return zap.String(FieldServiceEndpoint, value)
}

// WithConfig sets the config field, JSON-encoded.
func WithConfig(value interface{}) zap.Field {
	return zap.Inline(newJSONMarshaller(FieldConfig, value))
}

// WithHTTPStatus sets the http-status field.
func WithHTTPStatus(value int) zap.Field {
	return zap.Int(FieldHTTPStatus, value)
}

// WithParameter sets the parameter field.
func WithParameter(value string) zap.Field {
	return zap.String(FieldParameter, value)
}

// WithURI sets the uri field.
func WithURI(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldURI, value)
}

// WithURIString sets the uri field.
func WithURIString(value string) zap.Field {
	return zap.String(FieldURI, value)
}

// WithProcessID sets the process-id field.
func WithProcessID(value string) zap.Field {
	return zap.String(FieldProcessID, value)
}

// WithProviderPID sets the provider-pid field.
func WithProviderPID(value string) zap.Field {
	return zap.String(FieldProviderPID, value)
}

// WithConsumerPID sets the consumer-pid field.
func WithConsumerPID(value string) zap.Field {
	return zap.String(FieldConsumerPID, value)
}

// WithGrantID sets the grant-id field.
func WithGrantID(value string) zap.Field {
	return zap.String(FieldGrantID, value)
}

// WithInteractRef sets the interact-ref field.
func WithInteractRef(value string) zap.Field {
	return zap.String(FieldInteractRef, value)
}

// WithRole sets the role field.
func WithRole(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldRole, value)
}

// WithState sets the state field.
func WithState(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldState, value)
}

// WithFromState sets the from-state field.
func WithFromState(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldFromState, value)
}

// WithToState sets the to-state field.
func WithToState(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldToState, value)
}

// WithMessageType sets the message-type field.
func WithMessageType(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldMessageType, value)
}

// WithDirection sets the direction field.
func WithDirection(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldDirection, value)
}

// WithCallbackAddress sets the callback-address field.
func WithCallbackAddress(value string) zap.Field {
	return zap.String(FieldCallbackAddress, value)
}

// WithParticipant sets the participant field.
func WithParticipant(value string) zap.Field {
	return zap.String(FieldParticipant, value)
}

// WithAgreementID sets the agreement-id field.
func WithAgreementID(value string) zap.Field {
	return zap.String(FieldAgreementID, value)
}

// WithSessionID sets the session-id field.
func WithSessionID(value string) zap.Field {
	return zap.String(FieldSessionID, value)
}

// WithSubscriberID sets the subscriber-id field.
func WithSubscriberID(value string) zap.Field {
	return zap.String(FieldSubscriberID, value)
}

// WithCategory sets the category field.
func WithCategory(value string) zap.Field {
	return zap.String(FieldCategory, value)
}

// WithOperation sets the operation field.
func WithOperation(value string) zap.Field {
	return zap.String(FieldOperation, value)
}

// WithRetryCount sets the retry-count field.
func WithRetryCount(value int) zap.Field {
	return zap.Int(FieldRetryCount, value)
}

// WithHash sets the hash field.
func WithHash(value string) zap.Field {
	return zap.String(FieldHash, value)
}

// WithDuration sets the duration field.
func WithDuration(value time.Duration) zap.Field {
	return zap.Duration(FieldDuration, value)
}

// WithEnabled sets the enabled field.
func WithEnabled(value bool) zap.Field {
	return zap.Bool(FieldEnabled, value)
}

// WithTracingProvider sets the tracing-provider field.
func WithTracingProvider(value string) zap.Field {
	return zap.String(FieldTracingProvider, value)
}

// WithServiceName sets the service-name field.
func WithServiceName(value string) zap.Field {
	return zap.String(FieldServiceName, value)
}

// WithTotal sets the total field.
func WithTotal(value int) zap.Field {
	return zap.Int(FieldTotal, value)
}

// WithTopic sets the topic field.
func WithTopic(value string) zap.Field {
	return zap.String(FieldTopic, value)
}

// WithIndex sets the index field.
func WithIndex(value int) zap.Field {
	return zap.Int(FieldIndex, value)
}

// WithSize sets the size field.
func WithSize(value int) zap.Field {
	return zap.Int(FieldSize, value)
}

// WithMessageID sets the message-id field.
func WithMessageID(value string) zap.Field {
	return zap.String(FieldMessageID, value)
}

// WithTaskID sets the task-id field.
func WithTaskID(value string) zap.Field {
	return zap.String(FieldTaskID, value)
}

// WithInstanceID sets the instance-id field.
func WithInstanceID(value string) zap.Field {
	return zap.String(FieldInstanceID, value)
}

// WithPermitHolder sets the permit-holder field.
func WithPermitHolder(value string) zap.Field {
	return zap.String(FieldPermitHolder, value)
}

// WithStoreName sets the store-name field.
func WithStoreName(value string) zap.Field {
	return zap.String(FieldStoreName, value)
}

// WithLogSpec sets the log-spec field.
func WithLogSpec(value string) zap.Field {
	return zap.String(FieldLogSpec, value)
}

type jsonMarshaller struct {
	key string
	obj interface{}
}

func newJSONMarshaller(key string, value interface{}) *jsonMarshaller {
	return &jsonMarshaller{key: key, obj: value}
}

func (m *jsonMarshaller) MarshalLogObject(e zapcore.ObjectEncoder) error {
	if err := e.AddReflected(m.key, m.obj); err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	return nil
}

type httpHeaderMarshaller struct {
	headers http.Header
}

func newHTTPHeaderMarshaller(headers http.Header) *httpHeaderMarshaller {
	return &httpHeaderMarshaller{headers: headers}
}

func (m *httpHeaderMarshaller) MarshalLogObject(e zapcore.ObjectEncoder) error {
	for k, values := range m.headers {
		if err := e.AddArray(k, NewStringArrayMarshaller(values)); err != nil {
			return fmt.Errorf("marshal values: %w", err)
		}
	}

	return nil
}

// StringArrayMarshaller marshals an array of strings into a log field.
type StringArrayMarshaller struct {
	values []string
}

// NewStringArrayMarshaller returns a new StringArrayMarshaller.
func NewStringArrayMarshaller(values []string) *StringArrayMarshaller {
	return &StringArrayMarshaller{values: values}
}

// MarshalLogArray marshals the array.
func (m *StringArrayMarshaller) MarshalLogArray(e zapcore.ArrayEncoder) error {
	for _, v := range m.values {
		e.AppendString(v)
	}

	return nil
}
