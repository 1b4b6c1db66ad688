package server

import (
	"encoding/json"
	"fmt"

	"github.com/idusortus/predictwithfriends/internal/hub"
	"github.com/idusortus/predictwithfriends/internal/store"
	"github.com/sirupsen/logrus"
)

// peer is the part of a connection the dispatcher needs.
type peer interface {
	ID() string
	Session() string
	Username() string
	Bind(token, username string)
	Reply(frame []byte) bool
}

// dispatcher turns client frames into store commands. Successful commands
// that change shared state are broadcast by the store itself; the dispatcher
// only answers the originating connection.
type dispatcher struct {
	store  *store.Store
	logger *logrus.Logger
}

func (d *dispatcher) Dispatch(c *hub.Conn, frame []byte) {
	d.handle(c, frame)
}

func (d *dispatcher) Disconnect(c *hub.Conn) {
	d.leave(c)
}

// leave announces the user last bound to p. The session may have expired or
// been swept since, which does not matter for the notice.
func (d *dispatcher) leave(p peer) {
	if username := p.Username(); username != "" {
		d.store.Leave(p.ID(), username)
	}
}

func (d *dispatcher) handle(p peer, frame []byte) {
	var req request
	if err := json.Unmarshal(frame, &req); err != nil {
		d.logger.Debugf("Malformed frame from %s: %s", p.ID(), err)
		d.replyError(p, &store.ValidationError{Err: store.ErrMalformedMessage})
		return
	}
	d.logger.Debugf("-> %s %s", p.ID(), req.Type)

	switch req.Type {
	case "register":
		user, token, err := d.store.Register(p.ID(), req.Username, req.InviteCode)
		if err != nil {
			d.replyError(p, err)
			return
		}
		p.Bind(token, user.Username)
		d.reply(p, SessionResponse{Type: "registered", SessionID: token, UserID: user.ID, Username: user.Username, Balance: tokens(user.Balance)})

	case "login":
		user, token, err := d.store.Login(p.ID(), req.Username)
		if err != nil {
			d.replyError(p, err)
			return
		}
		p.Bind(token, user.Username)
		d.reply(p, SessionResponse{Type: "loggedIn", SessionID: token, UserID: user.ID, Username: user.Username, Balance: tokens(user.Balance)})

	case "createMarket":
		market, err := d.store.CreateMarket(req.SessionID, req.Question, closeDate(req.CloseDate))
		if err != nil {
			d.replyError(p, err)
			return
		}
		p.Bind(req.SessionID, market.CreatorName)

	case "placeBet":
		bet, _, _, err := d.store.PlaceBet(req.SessionID, req.MarketID, req.Side, amount(req.Amount))
		if err != nil {
			d.replyError(p, err)
			return
		}
		p.Bind(req.SessionID, bet.Username)

	case "resolveMarket":
		// Only the creator may resolve, so the creator is the caller.
		market, err := d.store.ResolveMarket(req.SessionID, req.MarketID, req.Outcome)
		if err != nil {
			d.replyError(p, err)
			return
		}
		p.Bind(req.SessionID, market.CreatorName)

	case "sendMessage":
		msg, err := d.store.SendMessage(req.SessionID, req.Message)
		if err != nil {
			d.replyError(p, err)
			return
		}
		p.Bind(req.SessionID, msg.Username)

	case "getState":
		state, err := d.store.GetState(req.SessionID)
		if err != nil {
			d.replyError(p, err)
			return
		}
		p.Bind(req.SessionID, state.User.Username)
		d.reply(p, stateResponse(state))

	default:
		d.replyError(p, &store.ValidationError{Err: fmt.Errorf("%w: unknown message type %q", store.ErrMalformedMessage, req.Type)})
	}
}

func (d *dispatcher) reply(p peer, v interface{}) {
	frame, err := json.Marshal(v)
	if err != nil {
		d.logger.Error("Can't encode reply: ", err)
		return
	}
	p.Reply(frame)
}

func (d *dispatcher) replyError(p peer, err error) {
	message := err.Error()
	if store.IsInternal(err) {
		d.logger.Error("Command failed: ", err)
		message = "Internal server error"
	}
	d.reply(p, ErrorResponse{Type: "error", Message: message, Code: store.Code(err)})
}
