package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/eventbank/ledger/circuitbreaker"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 54 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// watchAccount стримит обновления счета по WebSocket. Соединение
// закрывается при остановке шины или отключении клиента.
func (r *Router) watchAccount(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}

	sub, err := r.service.SubscribeAccount(c.Request.Context(), id)
	if err != nil {
		r.renderError(c, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		return
	}
	defer conn.Close()
	defer sub.Close()

	go discardReads(conn)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case update, open := <-sub.Updates():
			if !open {
				return
			}
			payload := gin.H{
				"eventType": update.Event.EventType(),
				"event":     update.Event,
				"state":     update.State,
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// watchBreakers стримит изменения состояний breaker'ов по WebSocket.
// Полуоткрытое состояние - внутренняя фаза пробного вызова, клиентам
// не транслируется: для них breaker остается разомкнутым, пока пробный
// вызов не переведет его в Closed или обратно в Open.
func (r *Router) watchBreakers(c *gin.Context) {
	sub, err := r.service.SubscribeBreaker()
	if err != nil {
		r.renderError(c, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		return
	}
	defer conn.Close()
	defer sub.Close()

	go discardReads(conn)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case change, open := <-sub.Updates():
			if !open {
				return
			}
			if change.To == circuitbreaker.StateHalfOpen {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(change); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// discardReads вычитывает входящие сообщения, чтобы обрабатывались
// control frames. Поток только серверный.
func discardReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
