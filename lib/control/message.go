// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/dltlink/lib/frame"
)

var (
	// ErrNotResponse means a frame is not a control response.
	ErrNotResponse = errors.New("not a control response")

	// ErrMalformed means a control payload is too short for its
	// service.
	ErrMalformed = errors.New("malformed control payload")
)

// Origin is the identity a client stamps on its requests.
type Origin struct {
	ECUID         frame.ID
	ApplicationID frame.ID
	ContextID     frame.ID
}

// DefaultOrigin is the identity used by common viewer tools.
var DefaultOrigin = Origin{
	ECUID:         frame.MustParseID("DLTC"),
	ApplicationID: frame.MustParseID("DA1"),
	ContextID:     frame.MustParseID("DC1"),
}

// BuildRequest wraps request in a control request frame. Control
// frames are little-endian and non-verbose.
func BuildRequest(request Request, origin Origin, counter uint8) frame.Message {
	payload := make([]byte, 0, 4+len(request.Payload))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(request.Service))
	payload = append(payload, request.Payload...)
	return frame.Message{
		Flags:   frame.FlagVersion | frame.FlagECUID | frame.FlagExtendedHeader,
		Counter: counter,
		ECUID:   origin.ECUID,
		Extended: frame.ExtendedHeader{
			Info:          frame.NewMessageInfo(frame.TypeControl, frame.ControlRequest, false),
			ApplicationID: origin.ApplicationID,
			ContextID:     origin.ContextID,
		},
		Payload: payload,
	}
}

// Response is a decoded control response. Data is owned by the
// Response.
type Response struct {
	Service Service
	Status  Status
	Data    []byte

	order frame.ByteOrder
}

// IsResponse reports whether received carries a control response
// without decoding its payload.
func IsResponse(received frame.Frame) bool {
	extended, ok := received.Extended()
	return ok && extended.Info.Type() == frame.TypeControl && extended.Info.Subtype() == frame.ControlResponse
}

// ParseResponse decodes a control response frame.
func ParseResponse(received frame.Frame) (Response, error) {
	if !IsResponse(received) {
		return Response{}, ErrNotResponse
	}
	payload := received.Payload()
	if len(payload) < 5 {
		return Response{}, fmt.Errorf("%w: response payload is %d bytes", ErrMalformed, len(payload))
	}
	order := received.Flags().ByteOrder()
	response := Response{
		Service: Service(order.Uint32(payload[:4])),
		Status:  Status(payload[4]),
		order:   order,
	}
	if len(payload) > 5 {
		response.Data = append([]byte(nil), payload[5:]...)
	}
	return response, nil
}

// DefaultLogLevel decodes a GetDefaultLogLevel response.
func (r Response) DefaultLogLevel() (frame.LogLevel, error) {
	if r.Service != ServiceGetDefaultLogLevel {
		return 0, fmt.Errorf("%w: %s response has no default log level", ErrMalformed, r.Service)
	}
	if err := r.Status.Err(); err != nil {
		return 0, err
	}
	if len(r.Data) < 1 {
		return 0, fmt.Errorf("%w: missing log level byte", ErrMalformed)
	}
	return frame.LogLevel(r.Data[0]), nil
}

// SoftwareVersion decodes a GetSoftwareVersion response: a 32-bit
// length followed by the version text.
func (r Response) SoftwareVersion() (string, error) {
	if r.Service != ServiceGetSoftwareVersion {
		return "", fmt.Errorf("%w: %s response has no software version", ErrMalformed, r.Service)
	}
	if err := r.Status.Err(); err != nil {
		return "", err
	}
	if len(r.Data) < 4 {
		return "", fmt.Errorf("%w: missing version length", ErrMalformed)
	}
	length := r.byteOrder().Uint32(r.Data[:4])
	if uint64(length) > uint64(len(r.Data)-4) {
		return "", fmt.Errorf("%w: version length %d exceeds %d data bytes", ErrMalformed, length, len(r.Data)-4)
	}
	return strings.TrimRight(string(r.Data[4:4+length]), "\x00"), nil
}

func (r Response) byteOrder() frame.ByteOrder {
	if r.order == nil {
		return binary.LittleEndian
	}
	return r.order
}
