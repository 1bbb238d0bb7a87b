// Package dispatch encapsulates the dual-path create/update/delete
// semantics: direct-to-service versus via-function with fallback, plus the
// cache invalidation that follows every successful write.
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/internal/cache"
	"github.com/financeai/bff/internal/gateway"
	"github.com/financeai/bff/pkg/helpers"
)

// Owner names the collaborator that serves update/delete forwarding in
// this deployment.
type Owner string

const (
	OwnerService  Owner = "service"
	OwnerFunction Owner = "function"
)

// originHeader identifies the BFF to the event-trigger collaborator.
const originHeader = "financeai-bff"

type Dispatcher struct {
	gw     *gateway.Gateway
	store  cache.Store
	logger *logrus.Logger
	txBase string
	fnBase string
	owner  Owner
}

func New(gw *gateway.Gateway, store cache.Store, logger *logrus.Logger, txBase, fnBase string, owner Owner) *Dispatcher {
	if owner != OwnerFunction {
		owner = OwnerService
	}
	return &Dispatcher{gw: gw, store: store, logger: logger, txBase: txBase, fnBase: fnBase, owner: owner}
}

// Result is the normalized status/body pair handed back to the HTTP layer.
type Result struct {
	Status int
	Body   any
}

// Create dispatches a validated create. mode=async tries the event-trigger
// collaborator first and falls back to direct creation on any gateway
// failure; anything else goes straight to the transactions service.
func (d *Dispatcher) Create(ctx context.Context, mode string, p WritePayload) (Result, error) {
	if err := validateCreate(p); err != nil {
		return Result{}, err
	}
	if strings.ToLower(mode) == "async" {
		return d.createAsync(ctx, p)
	}
	return d.createSync(ctx, p)
}

func (d *Dispatcher) createSync(ctx context.Context, p WritePayload) (Result, error) {
	resp, err := d.gw.PostJSON(ctx, d.txBase+"/transactions", p, nil)
	if err != nil {
		return Result{}, err
	}
	d.invalidate(ctx, p.UserID)
	return Result{Status: http.StatusCreated, Body: rawOrNull(resp.Body)}, nil
}

func (d *Dispatcher) createAsync(ctx context.Context, p WritePayload) (Result, error) {
	hdr := http.Header{}
	hdr.Set("x-user-id", p.UserID)
	hdr.Set("x-origin-bff", originHeader)

	resp, err := d.gw.PostJSON(ctx, d.fnBase+"/createTransaction", p, hdr)
	if err == nil {
		// function may answer 202 Accepted; everything else normalizes to 201
		status := http.StatusCreated
		if resp.Status == http.StatusAccepted {
			status = http.StatusAccepted
		}
		d.invalidate(ctx, p.UserID)
		return Result{Status: status, Body: map[string]any{"fromFunction": true, "data": rawOrNull(resp.Body)}}, nil
	}

	d.logger.WithFields(helpers.OpFields("create_transaction", p.UserID, d.fnBase)).
		WithField("err", err.Error()).Warn("function_create_failed")

	resp, err = d.gw.PostJSON(ctx, d.txBase+"/transactions", p, nil)
	if err != nil {
		return Result{}, err
	}
	d.invalidate(ctx, p.UserID)
	return Result{Status: http.StatusCreated, Body: map[string]any{"fallback": true, "created": rawOrNull(resp.Body)}}, nil
}

// Update validates only the fields present in the patch and forwards it to
// the owning collaborator. Collaborator errors (404 not_found_or_not_owned
// included) propagate to the caller unchanged.
func (d *Dispatcher) Update(ctx context.Context, id, userID string, patch UpdatePayload) (Result, error) {
	if err := validatePatch(patch); err != nil {
		return Result{}, err
	}

	body := patch.fields()
	body["userId"] = userID

	var (
		resp *gateway.Response
		err  error
	)
	if d.owner == OwnerFunction {
		hdr := http.Header{}
		hdr.Set("x-user-id", userID)
		resp, err = d.gw.PutJSON(ctx, d.fnBase+"/updateTransactions/"+url.PathEscape(id), body, hdr)
	} else {
		resp, err = d.gw.PutJSON(ctx, d.txBase+"/transactions/"+url.PathEscape(id), body, nil)
	}
	if err != nil {
		return Result{}, err
	}
	d.invalidate(ctx, userID)
	return Result{Status: http.StatusOK, Body: rawOrNull(resp.Body)}, nil
}

// Delete forwards deletion keyed by record id and user id; the ownership
// check belongs to the collaborator.
func (d *Dispatcher) Delete(ctx context.Context, id, userID string) (Result, error) {
	var (
		resp *gateway.Response
		err  error
	)
	if d.owner == OwnerFunction {
		hdr := http.Header{}
		hdr.Set("x-user-id", userID)
		resp, err = d.gw.Delete(ctx, d.fnBase+"/deleteTransactions/"+url.PathEscape(id), nil, hdr)
	} else {
		q := url.Values{"userId": {userID}}
		resp, err = d.gw.Delete(ctx, d.txBase+"/transactions/"+url.PathEscape(id), q, nil)
	}
	if err != nil {
		return Result{}, err
	}
	d.invalidate(ctx, userID)
	return Result{Status: http.StatusOK, Body: map[string]any{"ok": true, "deleted": rawOrNull(resp.Body)}}, nil
}

// invalidate clears the user's aggregate entry. A failed invalidation does
// not fail the write: the stale entry is bounded by the TTL.
func (d *Dispatcher) invalidate(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := d.store.Invalidate(ctx, cache.AggregateKey(userID)); err != nil {
		d.logger.WithFields(helpers.OpFields("cache_invalidate", userID, "")).
			WithField("err", err.Error()).Warn("cache_invalidate_failed")
	}
}

func rawOrNull(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
