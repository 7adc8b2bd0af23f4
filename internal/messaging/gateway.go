package messaging

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// GatewayClient talks to a messaging gateway: REST for conversation
// listing and message queries, a websocket feed for live streams.
type GatewayClient struct {
	baseURL string
	wsURL   string
	token   string
	http    *http.Client
	logger  *log.Logger
}

// GatewayFactory resolves GatewayClients using keystore material as
// the session credential.
type GatewayFactory struct {
	BaseURL  string
	WSURL    string
	Keystore *Keystore
	Logger   *log.Logger
}

// ResolveClient implements Factory. It fails with ErrNoKeyMaterial
// when the keystore has nothing for the address.
func (f *GatewayFactory) ResolveClient(ctx context.Context, address string) (Client, error) {
	material, err := f.Keystore.LoadKey(address)
	if err != nil {
		return nil, err
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(f.BaseURL, "/"),
		wsURL:   f.WSURL,
		token:   base64.StdEncoding.EncodeToString(material),
		http:    &http.Client{},
		logger:  f.Logger,
	}, nil
}

// ListConversations implements Client.
func (c *GatewayClient) ListConversations(ctx context.Context) ([]Conversation, error) {
	var conversations []Conversation
	if err := c.getJSON(ctx, "/v1/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// QueryMessages implements Client.
func (c *GatewayClient) QueryMessages(ctx context.Context, conv Conversation, dir QueryDirection, limit int, startTime int64) ([]Message, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if dir == Descending {
		params.Set("order", "desc")
	} else {
		params.Set("order", "asc")
	}
	if startTime > 0 {
		params.Set("start_time", strconv.FormatInt(startTime, 10))
	}

	var messages []Message
	path := "/v1/conversations/" + url.PathEscape(conv.Topic) + "/messages"
	if err := c.getJSON(ctx, path, params, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// StreamConversations implements Client.
func (c *GatewayClient) StreamConversations(ctx context.Context) (*Subscription, error) {
	return c.stream(ctx, "conversations")
}

// StreamMessages implements Client.
func (c *GatewayClient) StreamMessages(ctx context.Context) (*Subscription, error) {
	return c.stream(ctx, "messages")
}

// stream dials the websocket feed and pumps decoded events into a
// subscription until it is closed or the socket drops.
func (c *GatewayClient) stream(ctx context.Context, topic string) (*Subscription, error) {
	dialURL := c.wsURL + "?stream=" + url.QueryEscape(topic)
	conn, _, err := websocket.Dial(ctx, dialURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + c.token}},
	})
	if err != nil {
		return nil, fmt.Errorf("dial stream %s: %w", topic, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	sub := NewSubscription(64, func() {
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	})

	go func() {
		for {
			var event StreamEvent
			if err := wsjson.Read(streamCtx, conn, &event); err != nil {
				select {
				case <-streamCtx.Done():
				default:
					c.logger.Printf("messaging: stream %s read: %v", topic, err)
				}
				sub.Close()
				return
			}
			sub.Emit(event)
		}
	}()
	return sub, nil
}

// Close implements Client.
func (c *GatewayClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *GatewayClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
