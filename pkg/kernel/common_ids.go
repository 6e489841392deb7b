package kernel

import "github.com/google/uuid"

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

type TemplateID string

func NewTemplateID() TemplateID     { return TemplateID(uuid.NewString()) }
func (t TemplateID) String() string { return string(t) }
func (t TemplateID) IsEmpty() bool  { return string(t) == "" }

type SessionID string

func NewSessionID() SessionID      { return SessionID(uuid.NewString()) }
func (s SessionID) String() string { return string(s) }
func (s SessionID) IsEmpty() bool  { return string(s) == "" }

// DocumentID identifies the uploaded source image a session reviews.
type DocumentID string

func NewDocumentID() DocumentID     { return DocumentID(uuid.NewString()) }
func (d DocumentID) String() string { return string(d) }
func (d DocumentID) IsEmpty() bool  { return string(d) == "" }
