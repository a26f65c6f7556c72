package domain

import "time"

// Usuario is a user account. Accounts are excluded from the audit chain.
type Usuario struct {
	ID           int64  `json:"id"`
	EmpresaID    int64  `json:"empresaId"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

func (u *Usuario) EntityKind() string     { return KindUsuario }
func (u *Usuario) AuditID() (int64, bool) { return u.ID, u.ID != 0 }

// RefreshToken is a session credential. Excluded from the audit chain.
type RefreshToken struct {
	ID        int64     `json:"id"`
	UsuarioID int64     `json:"usuarioId"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (r *RefreshToken) EntityKind() string     { return KindRefreshToken }
func (r *RefreshToken) AuditID() (int64, bool) { return r.ID, r.ID != 0 }

// PasswordResetToken is a one-shot reset credential. Excluded from the audit chain.
type PasswordResetToken struct {
	ID        int64     `json:"id"`
	UsuarioID int64     `json:"usuarioId"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (p *PasswordResetToken) EntityKind() string     { return KindPasswordResetToken }
func (p *PasswordResetToken) AuditID() (int64, bool) { return p.ID, p.ID != 0 }
