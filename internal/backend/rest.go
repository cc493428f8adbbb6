package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/code-with-zain-hunzai/kekar-go/internal/config"
	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

const restTimeout = 30 * time.Second

// Client is the remote backend handle: PostgREST-style row access plus
// the auth endpoints, with the realtime feed in realtime.go.
type Client struct {
	rest    *resty.Client
	baseURL string
	anonKey string
	logger  zerolog.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

var _ Backend = (*Client)(nil)

// Open builds the backend handle for the given configuration. Missing
// credentials yield the Unconfigured handle, keeping the degraded state
// a distinct type rather than a nil that every caller must dodge.
func Open(cfg *config.Config, logger zerolog.Logger) Backend {
	if !cfg.BackendConfigured() {
		logger.Warn().Msg("backend credentials missing, running unconfigured")
		return Unconfigured{}
	}
	return NewClient(cfg.BackendURL, cfg.BackendAnonKey, logger)
}

// NewClient creates a backend client against the given base URL.
func NewClient(baseURL, anonKey string, logger zerolog.Logger) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(restTimeout).
		SetHeader("apikey", anonKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		rest:    rest,
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		logger:  logger,
	}
}

// Close releases the handle. The HTTP transport has no persistent
// state to tear down; realtime subscriptions own their connections.
func (c *Client) Close() error { return nil }

// bearer returns the token used for the Authorization header: the
// session's access token when signed in, the anon key otherwise.
func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" {
		return c.accessToken
	}
	return c.anonKey
}

func (c *Client) setSession(access, refresh string) {
	c.mu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	c.mu.Unlock()
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.rest.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.bearer())
}

// remoteError converts a non-2xx response into a RemoteError, keeping
// whatever message shape the backend used.
func remoteError(resp *resty.Response) error {
	var body struct {
		Message     string `json:"message"`
		Msg         string `json:"msg"`
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	_ = json.Unmarshal(resp.Body(), &body)

	msg := body.Message
	for _, alt := range []string{body.Msg, body.Description, body.Error} {
		if msg == "" {
			msg = alt
		}
	}
	return &RemoteError{Status: resp.StatusCode(), Message: msg}
}

// conversationFilter builds the OR-of-two-AND predicate selecting every
// message between the two users, in either direction.
func conversationFilter(selfID, peerID string) string {
	return fmt.Sprintf("(and(sender_id.eq.%s,receiver_id.eq.%s),and(sender_id.eq.%s,receiver_id.eq.%s))",
		selfID, peerID, peerID, selfID)
}

// involvingFilter selects every message sent or received by the user.
func involvingFilter(userID string) string {
	return fmt.Sprintf("(sender_id.eq.%s,receiver_id.eq.%s)", userID, userID)
}

// idListFilter renders an in-list predicate for the given ids.
func idListFilter(ids []string) string {
	return "in.(" + strings.Join(ids, ",") + ")"
}

// parseContentRangeTotal extracts the total row count from a
// Content-Range header of the form "0-0/42" or "*/0".
func parseContentRangeTotal(header string) (int, error) {
	slash := strings.LastIndexByte(header, '/')
	if slash < 0 || slash == len(header)-1 {
		return 0, fmt.Errorf("malformed content range %q", header)
	}
	total := header[slash+1:]
	if total == "*" {
		return 0, fmt.Errorf("content range %q carries no count", header)
	}
	return strconv.Atoi(total)
}

func (c *Client) InsertMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	var rows []models.Message
	resp, err := c.req(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(map[string]any{
			"sender_id":   msg.SenderID,
			"receiver_id": msg.ReceiverID,
			"content":     msg.Content,
			"read":        false,
		}).
		SetResult(&rows).
		Post("/rest/v1/" + TableMessages)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, remoteError(resp)
	}
	if len(rows) == 0 {
		return nil, &RemoteError{Status: resp.StatusCode(), Message: "insert returned no row"}
	}
	return &rows[0], nil
}

func (c *Client) ListConversation(ctx context.Context, selfID, peerID string) ([]models.Message, error) {
	var rows []models.Message
	resp, err := c.req(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("or", conversationFilter(selfID, peerID)).
		SetQueryParam("order", "created_at.asc").
		SetResult(&rows).
		Get("/rest/v1/" + TableMessages)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, remoteError(resp)
	}
	return rows, nil
}

func (c *Client) ListMessagesInvolving(ctx context.Context, userID string) ([]models.Message, error) {
	var rows []models.Message
	resp, err := c.req(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("or", involvingFilter(userID)).
		SetQueryParam("order", "created_at.desc").
		SetResult(&rows).
		Get("/rest/v1/" + TableMessages)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, remoteError(resp)
	}
	return rows, nil
}

func (c *Client) MarkMessagesRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	resp, err := c.req(ctx).
		SetQueryParam("id", idListFilter(ids)).
		SetBody(map[string]any{"read": true}).
		Patch("/rest/v1/" + TableMessages)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return remoteError(resp)
	}
	return nil
}

func (c *Client) MarkConversationRead(ctx context.Context, senderID, receiverID string) error {
	resp, err := c.req(ctx).
		SetQueryParam("sender_id", "eq."+senderID).
		SetQueryParam("receiver_id", "eq."+receiverID).
		SetQueryParam("read", "eq.false").
		SetBody(map[string]any{"read": true}).
		Patch("/rest/v1/" + TableMessages)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return remoteError(resp)
	}
	return nil
}

func (c *Client) CountUnread(ctx context.Context, receiverID string) (int, error) {
	resp, err := c.req(ctx).
		SetHeader("Prefer", "count=exact").
		SetHeader("Range-Unit", "items").
		SetHeader("Range", "0-0").
		SetQueryParam("select", "id").
		SetQueryParam("receiver_id", "eq."+receiverID).
		SetQueryParam("read", "eq.false").
		Get("/rest/v1/" + TableMessages)
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, remoteError(resp)
	}
	return parseContentRangeTotal(resp.Header().Get("Content-Range"))
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	resp, err := c.req(ctx).
		SetQueryParam("id", "eq."+id).
		Delete("/rest/v1/" + TableMessages)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return remoteError(resp)
	}
	return nil
}

func (c *Client) UpsertPresence(ctx context.Context, rec models.PresenceRecord) error {
	resp, err := c.req(ctx).
		SetHeader("Prefer", "resolution=merge-duplicates").
		SetBody(rec).
		Post("/rest/v1/" + TablePresence)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return remoteError(resp)
	}
	return nil
}

func (c *Client) SetPresenceStatus(ctx context.Context, userID, status string, lastSeen time.Time) error {
	resp, err := c.req(ctx).
		SetQueryParam("user_id", "eq."+userID).
		SetBody(map[string]any{
			"status":     status,
			"last_seen":  lastSeen.UTC().Format(time.RFC3339Nano),
			"updated_at": lastSeen.UTC().Format(time.RFC3339Nano),
		}).
		Patch("/rest/v1/" + TablePresence)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return remoteError(resp)
	}
	return nil
}

func (c *Client) ListPresence(ctx context.Context, excludeUserID string) ([]models.PresenceRecord, error) {
	var rows []models.PresenceRecord
	resp, err := c.req(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("user_id", "neq."+excludeUserID).
		SetQueryParam("order", "last_seen.desc").
		SetResult(&rows).
		Get("/rest/v1/" + TablePresence)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, remoteError(resp)
	}
	return rows, nil
}

func (c *Client) GetPresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	var rows []models.PresenceRecord
	resp, err := c.req(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("user_id", "eq."+userID).
		SetQueryParam("limit", "1").
		SetResult(&rows).
		Get("/rest/v1/" + TablePresence)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, remoteError(resp)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) CountPresence(ctx context.Context, status string) (int, error) {
	resp, err := c.req(ctx).
		SetHeader("Prefer", "count=exact").
		SetHeader("Range-Unit", "items").
		SetHeader("Range", "0-0").
		SetQueryParam("select", "user_id").
		SetQueryParam("status", "eq."+status).
		Get("/rest/v1/" + TablePresence)
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, remoteError(resp)
	}
	return parseContentRangeTotal(resp.Header().Get("Content-Range"))
}

// authUser is the backend's user payload shape. Display fields live in
// user_metadata with provider-dependent keys, so both spellings are
// tried.
type authUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  struct {
		FullName  string `json:"full_name"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
		Picture   string `json:"picture"`
	} `json:"user_metadata"`
}

func (u authUser) identity() *models.Identity {
	name := u.Metadata.FullName
	if name == "" {
		name = u.Metadata.Name
	}
	avatar := u.Metadata.AvatarURL
	if avatar == "" {
		avatar = u.Metadata.Picture
	}
	return &models.Identity{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  name,
		AvatarURL: avatar,
		CreatedAt: u.CreatedAt,
	}
}

// tokenResponse is the auth endpoints' session payload.
type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         authUser `json:"user"`
}

func (c *Client) CurrentIdentity(ctx context.Context) (*models.Identity, error) {
	c.mu.Lock()
	signedIn := c.accessToken != ""
	c.mu.Unlock()
	if !signedIn {
		return nil, ErrAuthRequired
	}

	var user authUser
	resp, err := c.req(ctx).
		SetResult(&user).
		Get("/auth/v1/user")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, remoteError(resp)
	}
	return user.identity(), nil
}

func (c *Client) SignUp(ctx context.Context, email, password, name string) (*models.Identity, error) {
	var tok tokenResponse
	resp, err := c.req(ctx).
		SetBody(map[string]any{
			"email":    email,
			"password": password,
			"data":     map[string]string{"full_name": name},
		}).
		SetResult(&tok).
		Post("/auth/v1/signup")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, remoteError(resp)
	}
	c.setSession(tok.AccessToken, tok.RefreshToken)
	return tok.User.identity(), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	var tok tokenResponse
	resp, err := c.req(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&tok).
		Post("/auth/v1/token")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, remoteError(resp)
	}
	c.setSession(tok.AccessToken, tok.RefreshToken)
	return tok.User.identity(), nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	signedIn := c.accessToken != ""
	c.mu.Unlock()
	if !signedIn {
		return nil
	}

	resp, err := c.req(ctx).Post("/auth/v1/logout")
	c.setSession("", "")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return remoteError(resp)
	}
	return nil
}

func (c *Client) ExchangeSession(ctx context.Context, accessToken, refreshToken string) (*models.Identity, error) {
	c.setSession(accessToken, refreshToken)
	ident, err := c.CurrentIdentity(ctx)
	if err != nil {
		c.setSession("", "")
		return nil, fmt.Errorf("exchange session: %w", err)
	}
	return ident, nil
}
