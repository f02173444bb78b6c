package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/onnwee/subgate/crypto"
)

// UpsertCredentials stores or overwrites the token pair for a chat identity.
// Both fields are replaced on every call; there is no partial update. Tokens
// are encrypted before storage when ENCRYPTION_KEY is configured
// (encryption_version=1), otherwise stored plaintext (version=0).
func (s *Store) UpsertCredentials(ctx context.Context, chatID, access, refresh string) error {
	enc, err := getEncryptor()
	if err != nil {
		return fmt.Errorf("get encryptor: %w", err)
	}

	encVersion := 0
	accessToStore := access
	refreshToStore := refresh
	if enc != nil {
		encVersion = 1
		if access != "" {
			if accessToStore, err = crypto.EncryptString(enc, access); err != nil {
				return fmt.Errorf("encrypt access token: %w", err)
			}
		}
		if refresh != "" {
			if refreshToStore, err = crypto.EncryptString(enc, refresh); err != nil {
				return fmt.Errorf("encrypt refresh token: %w", err)
			}
		}
	}

	q := `INSERT INTO credentials(chat_id, access_token, refresh_token, encryption_version, updated_at)
		  VALUES($1,$2,$3,$4,NOW())
		  ON CONFLICT(chat_id) DO UPDATE SET
		    access_token=EXCLUDED.access_token,
		    refresh_token=EXCLUDED.refresh_token,
		    encryption_version=EXCLUDED.encryption_version,
		    updated_at=NOW()`
	_, err = s.DB.ExecContext(ctx, q, chatID, accessToStore, refreshToStore, encVersion)
	return err
}

// GetCredentials retrieves the stored token pair for a chat identity. Absence
// is not an error: both strings come back empty, which is the canonical
// "never authenticated" state. Encrypted rows are decrypted transparently.
func (s *Store) GetCredentials(ctx context.Context, chatID string) (access, refresh string, err error) {
	var encVersion int
	row := s.DB.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, COALESCE(encryption_version, 0)
		 FROM credentials WHERE chat_id = $1`, chatID)
	err = row.Scan(&access, &refresh, &encVersion)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}

	if encVersion == 1 {
		enc, encErr := getEncryptor()
		if encErr != nil {
			return "", "", fmt.Errorf("get encryptor for decryption: %w", encErr)
		}
		if enc == nil {
			return "", "", fmt.Errorf("token pair is encrypted but ENCRYPTION_KEY not configured")
		}
		if access != "" {
			if access, err = crypto.DecryptString(enc, access); err != nil {
				return "", "", fmt.Errorf("decrypt access token: %w", err)
			}
		}
		if refresh != "" {
			if refresh, err = crypto.DecryptString(enc, refresh); err != nil {
				return "", "", fmt.Errorf("decrypt refresh token: %w", err)
			}
		}
	}
	return access, refresh, nil
}

// DeleteCredentials removes the stored token pair for a chat identity.
func (s *Store) DeleteCredentials(ctx context.Context, chatID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM credentials WHERE chat_id=$1`, chatID)
	return err
}

// DeleteUser removes the credential and any expiry marker for a chat identity
// in one transaction, so subsequent reads observe both absent together.
func (s *Store) DeleteUser(ctx context.Context, chatID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM expiry_markers WHERE chat_id=$1`, chatID); err != nil {
		return fmt.Errorf("delete marker: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE chat_id=$1`, chatID); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return tx.Commit()
}

// CountCredentials returns the number of linked identities.
func (s *Store) CountCredentials(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n)
	return n, err
}

// defaultPageSize bounds how many chat ids a single enumeration query loads.
const defaultPageSize = 100

// maxPageRetries bounds how often a failed page query is retried before the
// enumeration gives up. Retrying from the same cursor keeps iteration order
// intact across partial-page failures.
const maxPageRetries = 3

// ChatIDPager lazily enumerates all linked chat identities in key order using
// keyset pagination. A failed page is retried from the same cursor; after
// maxPageRetries consecutive failures the pager stops and records the error.
type ChatIDPager struct {
	store    *Store
	pageSize int
	after    string
	buf      []string
	done     bool
	err      error
}

// ChatIDs returns a pager over all linked chat identities. pageSize <= 0 uses
// the default.
func (s *Store) ChatIDs(pageSize int) *ChatIDPager {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &ChatIDPager{store: s, pageSize: pageSize}
}

// Next returns the next chat id, fetching the next page when the buffer is
// exhausted. It returns false when the enumeration is complete or has failed
// (check Err to distinguish).
func (p *ChatIDPager) Next(ctx context.Context) (string, bool) {
	for len(p.buf) == 0 {
		if p.done || p.err != nil {
			return "", false
		}
		p.fetchPage(ctx)
	}
	id := p.buf[0]
	p.buf = p.buf[1:]
	p.after = id
	return id, true
}

// Err reports a page failure that terminated the enumeration early.
func (p *ChatIDPager) Err() error { return p.err }

func (p *ChatIDPager) fetchPage(ctx context.Context) {
	var lastErr error
	for attempt := 0; attempt < maxPageRetries; attempt++ {
		rows, err := p.store.DB.QueryContext(ctx,
			`SELECT chat_id FROM credentials WHERE chat_id > $1 ORDER BY chat_id LIMIT $2`,
			p.after, p.pageSize)
		if err != nil {
			lastErr = err
			slog.Warn("credential page query failed", slog.Int("attempt", attempt+1), slog.Any("err", err))
			continue
		}
		page, scanErr := scanChatIDs(rows)
		if scanErr != nil {
			lastErr = scanErr
			slog.Warn("credential page scan failed", slog.Int("attempt", attempt+1), slog.Any("err", scanErr))
			continue
		}
		if len(page) < p.pageSize {
			p.done = true
		}
		p.buf = page
		return
	}
	p.err = fmt.Errorf("credential enumeration failed after %d attempts: %w", maxPageRetries, lastErr)
}

func scanChatIDs(rows *sql.Rows) ([]string, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
