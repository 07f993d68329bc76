package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SafeWriter обеспечивает потокобезопасную запись в WebSocket соединение
type SafeWriter struct {
	conn         *websocket.Conn
	mutex        sync.Mutex
	writeTimeout time.Duration
}

// NewSafeWriter создает новый экземпляр SafeWriter
func NewSafeWriter(conn *websocket.Conn, writeTimeout time.Duration) *SafeWriter {
	return &SafeWriter{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// WriteJSON потокобезопасно записывает JSON данные в WebSocket соединение
func (w *SafeWriter) WriteJSON(v interface{}) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.setDeadline(); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

// WriteMessage потокобезопасно записывает сообщение в WebSocket соединение
func (w *SafeWriter) WriteMessage(messageType int, data []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.setDeadline(); err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, data)
}

// WriteControl отправляет управляющий кадр (ping, close)
func (w *SafeWriter) WriteControl(messageType int, data []byte) error {
	deadline := time.Now().Add(time.Second)
	if w.writeTimeout > 0 {
		deadline = time.Now().Add(w.writeTimeout)
	}
	return w.conn.WriteControl(messageType, data, deadline)
}

// Close отправляет кадр закрытия и закрывает соединение
func (w *SafeWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	_ = w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return w.conn.Close()
}

// ReadMessage читает сообщение из WebSocket соединения (небезопасно для параллельного чтения)
func (w *SafeWriter) ReadMessage() (int, []byte, error) {
	return w.conn.ReadMessage()
}

func (w *SafeWriter) setDeadline() error {
	if w.writeTimeout <= 0 {
		return nil
	}
	return w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
}
