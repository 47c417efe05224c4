package reload

import (
	"fmt"
	"sync"

	"golang.org/x/net/websocket"
)

type browserTab struct {
	ws    *websocket.Conn
	close chan struct{}
}

func (tab *browserTab) notify(msg string) error {
	err := websocket.Message.Send(tab.ws, msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err) //nolint:errorlint // prevent err in api
	}

	return nil
}

type browserSessions struct {
	openConnections map[int]browserTab
	nextID          int
	mu              sync.Mutex
}

func newBrowserSessions() *browserSessions {
	return &browserSessions{
		openConnections: map[int]browserTab{},
		mu:              sync.Mutex{},
	}
}

func (l *browserSessions) add(ws *websocket.Conn) (int, chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++

	c := make(chan struct{})
	l.openConnections[id] = browserTab{
		ws:    ws,
		close: c,
	}

	return id, c
}

func (l *browserSessions) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeLocked(id)
}

func (l *browserSessions) removeLocked(id int) {
	if tab, ok := l.openConnections[id]; ok {
		close(tab.close)
		delete(l.openConnections, id)
	}
}

// notify sends msg to all tabs and returns the number of tabs reached.
func (l *browserSessions) notify(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	reached := 0

	for id, conn := range l.openConnections {
		err := conn.notify(msg)
		if err != nil {
			// remove connection, assuming it got closed by the client
			l.removeLocked(id)

			continue
		}

		reached++
	}

	return reached
}

func (l *browserSessions) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.openConnections)
}

func (l *browserSessions) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id := range l.openConnections {
		l.removeLocked(id)
	}
}
