package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	qrterminal "github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite"

	"github.com/nexshop/storebot/internal/config"
)

// whatsAppTransport is the production Transport: one whatsmeow client per
// tenant with its own credential database under the configured store dir.
type whatsAppTransport struct {
	tenantID       string
	printQR        bool
	client         *whatsmeow.Client
	storeContainer *sqlstore.Container
	handlerID      uint32

	events    chan Event
	closeOnce sync.Once
	closed    chan struct{}
}

// NewWhatsAppFactory returns a TransportFactory producing per-tenant
// WhatsApp transports.
func NewWhatsAppFactory(cfg config.WhatsAppConfig) TransportFactory {
	return func(tenantID string) (Transport, error) {
		return newWhatsAppTransport(cfg, tenantID)
	}
}

func newWhatsAppTransport(cfg config.WhatsAppConfig, tenantID string) (*whatsAppTransport, error) {
	storeDir := strings.TrimSpace(cfg.StoreDir)
	if storeDir == "" {
		storeDir = filepath.Join(config.ConfigDir(), "whatsapp")
	}
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		return nil, fmt.Errorf("create whatsapp store dir: %w", err)
	}

	storePath := filepath.Join(storeDir, tenantID+".db")
	storeDSN := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", filepath.ToSlash(storePath))
	container, err := sqlstore.New(context.Background(), "sqlite", storeDSN, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("init whatsapp session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("get whatsapp device: %w", err)
	}

	t := &whatsAppTransport{
		tenantID:       tenantID,
		printQR:        cfg.PrintQR,
		client:         whatsmeow.NewClient(deviceStore, waLog.Noop),
		storeContainer: container,
		events:         make(chan Event, 32),
		closed:         make(chan struct{}),
	}
	t.handlerID = t.client.AddEventHandler(t.handleEvent)
	return t, nil
}

func (t *whatsAppTransport) Events() <-chan Event {
	return t.events
}

func (t *whatsAppTransport) Connect(ctx context.Context) error {
	if t.client.Store.ID == nil {
		qrChan, err := t.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get whatsapp qr channel: %w", err)
		}
		go t.consumeQR(ctx, qrChan)
	}

	if err := t.client.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp: %w", err)
	}
	return nil
}

func (t *whatsAppTransport) consumeQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-qrChan:
			if !ok {
				return
			}

			switch evt.Event {
			case whatsmeow.QRChannelEventCode:
				if t.printQR {
					log.Printf("[whatsapp] %s: scan the QR code below to pair", t.tenantID)
					qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
				}
				t.emit(Event{Kind: EventPairingCode, Code: evt.Code})
			case whatsmeow.QRChannelEventError:
				t.emit(Event{Kind: EventClosed, Err: evt.Error})
				return
			default:
				log.Printf("[whatsapp] %s: login event=%s", t.tenantID, evt.Event)
			}
		}
	}
}

func (t *whatsAppTransport) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		t.emit(Event{Kind: EventReady})
	case *events.LoggedOut:
		t.emit(Event{Kind: EventClosed, Err: fmt.Errorf("logged out: %v", e.Reason)})
	case *events.StreamReplaced:
		t.emit(Event{Kind: EventClosed, Err: fmt.Errorf("stream replaced by another client")})
	case *events.Message:
		t.handleMessage(e)
	}
}

func (t *whatsAppTransport) handleMessage(evt *events.Message) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe {
		return
	}

	content := strings.TrimSpace(evt.Message.GetConversation())
	if content == "" && evt.Message.GetExtendedTextMessage() != nil {
		content = strings.TrimSpace(evt.Message.GetExtendedTextMessage().GetText())
	}
	if content == "" {
		return
	}

	t.emit(Event{
		Kind: EventMessage,
		Peer: evt.Info.Sender.ToNonAD().String(),
		Text: content,
	})
}

func (t *whatsAppTransport) emit(evt Event) {
	select {
	case <-t.closed:
	case t.events <- evt:
	}
}

func (t *whatsAppTransport) SendText(ctx context.Context, recipient, text string) error {
	jid, err := parseWhatsAppJID(recipient)
	if err != nil {
		return fmt.Errorf("parse recipient %q: %w", recipient, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	_, err = t.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	return nil
}

func (t *whatsAppTransport) Close() error {
	var closeErr error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.handlerID != 0 {
			t.client.RemoveEventHandler(t.handlerID)
			t.handlerID = 0
		}
		t.client.Disconnect()
		if err := t.storeContainer.Close(); err != nil {
			closeErr = fmt.Errorf("close whatsapp store: %w", err)
		}
	})
	return closeErr
}

// parseWhatsAppJID normalizes a recipient address to the JID format the
// transport requires. Bare phone numbers map to the default user server.
func parseWhatsAppJID(raw string) (types.JID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.EmptyJID, fmt.Errorf("empty jid")
	}

	if strings.Contains(raw, "@") {
		return types.ParseJID(raw)
	}

	user := strings.TrimPrefix(raw, "+")
	if isDigitsOnly(user) {
		return types.NewJID(user, types.DefaultUserServer), nil
	}

	return types.ParseJID(raw)
}

func isDigitsOnly(val string) bool {
	if val == "" {
		return false
	}
	for _, r := range val {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
