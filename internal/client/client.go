package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chrisdamba/menumanager/internal/api"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/tree"
)

const DefaultTimeout = 30 * time.Second

// Client speaks the menu wire protocol. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the whole document and the revision it was read at.
func (c *Client) Fetch(ctx context.Context) (*models.Snapshot, error) {
	const action = "fetch data"
	resp, err := c.do(ctx, http.MethodGet, api.PathGetData, nil, nil, "")
	if err != nil {
		return nil, &OperationError{Action: action, Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, action); err != nil {
		return nil, err
	}

	doc := models.NewDocument()
	if err := json.NewDecoder(resp.Body).Decode(doc); err != nil {
		return nil, &OperationError{Action: action, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode document: %w", err)}
	}
	rev, _ := api.ParseETag(resp.Header.Get("ETag"))
	return &models.Snapshot{Document: doc.Clone(), Revision: rev}, nil
}

func (c *Client) Update(ctx context.Context, path tree.Path, value any) error {
	return c.Apply(ctx, tree.Mutation{Op: tree.OpUpdate, Path: path, Value: value})
}

func (c *Client) Add(ctx context.Context, path tree.Path, value any) error {
	return c.Apply(ctx, tree.Mutation{Op: tree.OpAdd, Path: path, Value: value})
}

func (c *Client) Delete(ctx context.Context, path tree.Path) error {
	return c.Apply(ctx, tree.Mutation{Op: tree.OpDelete, Path: path})
}

// Apply sends m. With CheckRevision set, ExpectedRevision travels as If-Match.
func (c *Client) Apply(ctx context.Context, m tree.Mutation) error {
	return c.apply(ctx, m, string(m.Op)+" data")
}

func (c *Client) apply(ctx context.Context, m tree.Mutation, action string) error {
	var method, endpoint string
	switch m.Op {
	case tree.OpUpdate:
		method, endpoint = http.MethodPut, api.PathUpdateData
	case tree.OpAdd:
		method, endpoint = http.MethodPost, api.PathAddData
	case tree.OpDelete:
		method, endpoint = http.MethodDelete, api.PathDeleteData
	default:
		return &OperationError{Action: action, Err: fmt.Errorf("unknown operation %q", m.Op)}
	}

	body := api.MutationRequest{Path: m.Path, NewData: m.Value}
	var ifMatch string
	if m.CheckRevision {
		ifMatch = api.FormatETag(m.ExpectedRevision)
	}
	resp, err := c.do(ctx, method, endpoint, nil, body, ifMatch)
	if err != nil {
		return &OperationError{Action: action, Err: err}
	}
	defer resp.Body.Close()
	return checkStatus(resp, action)
}

// Search runs a search query and returns the matching records. A query
// without results fails with a 404 OperationError.
func (c *Client) Search(ctx context.Context, q tree.SearchQuery) ([]map[string]any, error) {
	const action = "search data"
	params := url.Values{}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	set("area", q.Area)
	set("option", q.Option)
	set("name", q.Name)
	set("reward_eligible", q.RewardEligible)
	set("dietary_requirements", q.Dietary)
	set("id", q.ID)

	resp, err := c.do(ctx, http.MethodGet, api.PathSearch, params, nil, "")
	if err != nil {
		return nil, &OperationError{Action: action, Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, action); err != nil {
		return nil, err
	}

	var out []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &OperationError{Action: action, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode results: %w", err)}
	}
	return out, nil
}

// Locate returns the current path of the item with the given id.
func (c *Client) Locate(ctx context.Context, id string) (tree.Path, error) {
	const action = "locate item"
	resp, err := c.do(ctx, http.MethodGet, api.PathLocate, url.Values{"id": {id}}, nil, "")
	if err != nil {
		return nil, &OperationError{Action: action, Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, action); err != nil {
		return nil, err
	}

	var out api.LocateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &OperationError{Action: action, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode path: %w", err)}
	}
	return out.Path, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body any, ifMatch string) (*http.Response, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response, action string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(resp.Body)
	opErr := &OperationError{
		Action:     action,
		StatusCode: resp.StatusCode,
		Detail:     strings.TrimSpace(string(raw)),
	}
	var structured api.ErrorResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && json.Unmarshal(raw, &structured) == nil {
		opErr.Kind = structured.Kind
		opErr.Detail = structured.Error
	}
	return opErr
}
