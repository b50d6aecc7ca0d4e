package authsession

import (
	"context"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/credstore"
)

// Restore loads a stored session, typically at startup. With nothing stored
// the Manager is Unauthenticated; otherwise it is Authenticated with a user
// projected from the access token.
func (m *Manager) Restore(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	pair, err := m.client.Store().Load(ctx)
	if err != nil {
		return &authsdk.StoreError{Op: "load", Err: err}
	}
	if pair == nil {
		m.commit(session{})
		return nil
	}

	m.commit(m.authenticated(resolveUser(nil, pair.Access, ""), *pair))
	m.logger.Debug("stored session restored", "has_expiry", pair.Expiry != nil)
	return nil
}

// RefreshIfNeeded returns an access token that is good for at least the
// refresh skew. A cached token with a known expiry beyond that is returned
// without a network call; otherwise the backend is asked for a new one.
// Concurrent callers share a single refresh. The shared call is not tied
// to any one caller's ctx; a caller whose ctx ends stops waiting and gets
// ctx's error while the refresh carries on for the others.
//
// A refresh response without an access token returns "" and changes
// nothing.
func (m *Manager) RefreshIfNeeded(ctx context.Context) (string, error) {
	if t := m.snapshot().tokens; t != nil && t.ValidAt(m.now(), m.skew) {
		return t.Access, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := m.refreshes.DoChan("refresh", func() (any, error) {
		ctx, cancel := context.WithTimeout(shared, m.refreshTimeout)
		defer cancel()
		return m.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			m.logger.Debug("joined in-flight refresh")
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &authsdk.NetworkError{Err: ctx.Err()}
	}
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	access, err := m.client.Refresh(ctx)
	if err != nil {
		m.logger.Info("refresh failed", "error", err)
		return "", err
	}
	if access == "" {
		return "", nil
	}

	cur := m.snapshot()
	pair := m.storedPair(ctx, access, cur.tokens)
	user := cur.user
	if user == nil {
		user = resolveUser(nil, access, "")
	}
	m.commit(m.authenticated(user, pair))
	return access, nil
}

// storedPair returns what the refresh persisted. The refresh token only
// lives in the store, so it is read back; prev covers a failed read.
func (m *Manager) storedPair(ctx context.Context, access string, prev *credstore.TokenPair) credstore.TokenPair {
	if pair, err := m.client.Store().Load(ctx); err == nil && pair != nil && pair.Access == access {
		return *pair
	}

	refresh := ""
	if prev != nil {
		refresh = prev.Refresh
	}
	return authsdk.NewTokenPair(access, refresh)
}

// Logout signs out. The local session and store are cleared whatever the
// backend says; a failed notification is logged and reported in the
// result. Only a failed store clear is returned as an error, and the
// in-memory session is dropped even then.
func (m *Manager) Logout(ctx context.Context) (*authsdk.LogoutResult, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	res, err := m.client.Logout(ctx)
	m.commit(session{})

	if res != nil && res.NotifyErr != nil {
		m.logger.Warn("logout notification failed", "error", res.NotifyErr)
	}
	if err != nil {
		m.logger.Error("logout could not clear stored credentials", "error", err)
		return res, err
	}

	m.logger.Info("logged out")
	return res, nil
}
