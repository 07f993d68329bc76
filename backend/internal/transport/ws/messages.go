package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
)

var (
	ErrInvalidMessage     = errors.New("invalid message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// GetCurrentServerTime возвращает текущее время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// GetMessageType возвращает тип сообщения без полного разбора
func GetMessageType(data []byte) (string, error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if base.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	return base.Type, nil
}

// ParseMessage разбирает входящее сообщение в соответствующий тип
func ParseMessage(data []byte) (interface{}, error) {
	messageType, err := GetMessageType(data)
	if err != nil {
		return nil, err
	}

	var msg interface{}
	switch messageType {
	case MessageTypeInfo:
		msg = &InfoMessage{}
	case MessageTypeError:
		msg = &ErrorMessage{}
	case MessageTypePing:
		msg = &PingMessage{}
	case MessageTypePong:
		msg = &PongMessage{}
	case MessageTypeControls:
		msg = &ControlsMessage{}
	case MessageTypePress, MessageTypeRelease, MessageTypeReleaseAll:
		msg = &ControlMessage{}
	case MessageTypeSnapshot:
		msg = &SnapshotMessage{}
	case MessageTypeFlightConfig:
		msg = &FlightConfigMessage{}
	case MessageTypeChunkCreated, MessageTypeChunkReleased:
		msg = &ChunkMessage{}
	case MessageTypeRingSpawned, MessageTypeRingRemoved:
		msg = &RingMessage{}
	case MessageTypeBurstStarted:
		msg = &BurstMessage{}
	case MessageTypeBurstExpired:
		msg = &BurstExpiredMessage{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, messageType)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s message: %v", ErrInvalidMessage, messageType, err)
	}
	return msg, nil
}

// NewInfoMessage создает новое информационное сообщение
func NewInfoMessage(message string) *InfoMessage {
	return &InfoMessage{
		Type:       MessageTypeInfo,
		Message:    message,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewErrorMessage создает сообщение об ошибке
func NewErrorMessage(err error) *ErrorMessage {
	return &ErrorMessage{Type: MessageTypeError, Error: err.Error()}
}

// NewPingMessage создает пинг с текущим временем клиента
func NewPingMessage() *PingMessage {
	return &PingMessage{Type: MessageTypePing, ClientTime: GetCurrentServerTime()}
}

// NewPongMessage создает ответ на пинг
func NewPongMessage(clientTime int64) *PongMessage {
	return &PongMessage{
		Type:       MessageTypePong,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewControlsMessage создает сообщение с набором удерживаемых команд
func NewControlsMessage(controls physics.ControlSet) *ControlsMessage {
	return &ControlsMessage{
		Type:       MessageTypeControls,
		Controls:   controls.Names(),
		ClientTime: GetCurrentServerTime(),
	}
}

// ControlSet переводит имена команд в набор
func (m *ControlsMessage) ControlSet() (physics.ControlSet, error) {
	set, err := physics.ParseControlSet(m.Controls)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return set, nil
}

// NewControlMessage создает сообщение о нажатии или отпускании команды.
// Для MessageTypeReleaseAll сигнал не передается.
func NewControlMessage(messageType string, signal physics.ControlSignal) *ControlMessage {
	msg := &ControlMessage{Type: messageType, ClientTime: GetCurrentServerTime()}
	if messageType != MessageTypeReleaseAll {
		msg.Control = signal.String()
	}
	return msg
}

// Signal переводит имя команды в сигнал
func (m *ControlMessage) Signal() (physics.ControlSignal, error) {
	signal, err := physics.ParseControl(m.Control)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return signal, nil
}
