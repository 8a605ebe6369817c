package registry

import (
	"errors"
	"fmt"

	"horseregistry/anchor"
	"horseregistry/model"
)

// Core maps external record ids to tokens and keeps their anchored
// fingerprints, metadata pointers and owners. A Core is bound to the state
// of one transaction; build a new one per call.
type Core struct {
	state State
	Roles *RoleLedger
	Pause *PauseGate
}

// NewCore wires a RoleLedger and a PauseGate over state.
func NewCore(state State) *Core {
	roles := NewRoleLedger(state)
	return &Core{
		state: state,
		Roles: roles,
		Pause: NewPauseGate(state, roles),
	}
}

// CreateRequest carries the inputs of Create.
type CreateRequest struct {
	Owner           string
	ExternalID      string
	ContentHash     anchor.Digest
	SecretFieldHash anchor.Digest
	MetadataURI     string
}

func (c *Core) settingsKey() (string, error) {
	return c.state.CreateCompositeKey(settingsObjectType, []string{})
}

func (c *Core) externalIDKey(externalID string) (string, error) {
	return c.state.CreateCompositeKey(externalIDObjectType, []string{externalID})
}

func (c *Core) counterKey() (string, error) {
	return c.state.CreateCompositeKey(tokenCounterType, []string{})
}

func (c *Core) balanceKey(owner string) (string, error) {
	return c.state.CreateCompositeKey(ownerBalanceType, []string{owner})
}

// Initialize records the registry settings and grants DEFAULT_ADMIN_ROLE to
// settings.Admin, or to the caller when no admin is named. It runs once.
func (c *Core) Initialize(caller string, settings model.RegistrySettings) (*model.RegistrySettings, error) {
	if err := validateAccount(caller, "caller"); err != nil {
		return nil, err
	}
	if settings.Admin == "" {
		settings.Admin = caller
	}
	if err := validateAccount(settings.Admin, "admin"); err != nil {
		return nil, err
	}
	if settings.MetadataPolicy == "" {
		settings.MetadataPolicy = model.PolicyRegistrar
	}
	if !settings.MetadataPolicy.Valid() {
		return nil, fmt.Errorf("%w: unknown metadata policy '%s'", ErrInvalidInput, settings.MetadataPolicy)
	}
	if settings.SchemaVersion == "" {
		settings.SchemaVersion = anchor.DefaultSchemaVersion
	}
	if _, err := anchor.LookupSchema(settings.SchemaVersion); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	key, err := c.settingsKey()
	if err != nil {
		return nil, fmt.Errorf("Initialize: failed to create settings key: %w", err)
	}
	existing, err := c.state.GetState(key)
	if err != nil {
		return nil, fmt.Errorf("Initialize: failed to read settings: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: registry is already initialized", ErrAlreadyExists)
	}

	now, err := txTimestamp(c.state)
	if err != nil {
		return nil, err
	}
	settings.ObjectType = settingsObjectType
	settings.InitializedAt = now
	settings.InitializedTxID = c.state.GetTxID()

	if err := putJSON(c.state, key, settings); err != nil {
		return nil, fmt.Errorf("Initialize: failed to save settings: %w", err)
	}
	if err := c.Roles.grant(DefaultAdminRole, settings.Admin, caller); err != nil {
		return nil, fmt.Errorf("Initialize: failed to grant %s: %w", DefaultAdminRole, err)
	}
	if err := emit(c.state, model.EventInitialized, model.InitializedEvent{
		Admin: settings.Admin, MetadataPolicy: settings.MetadataPolicy, SchemaVersion: settings.SchemaVersion,
	}); err != nil {
		return nil, err
	}
	logger.Infof("Registry initialized by '%s': admin '%s', metadata policy '%s', schema '%s'.",
		caller, settings.Admin, settings.MetadataPolicy, settings.SchemaVersion)
	return &settings, nil
}

// Settings returns the settings written by Initialize.
func (c *Core) Settings() (*model.RegistrySettings, error) {
	key, err := c.settingsKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create settings key: %w", err)
	}
	var settings model.RegistrySettings
	found, err := getJSON(c.state, key, &settings)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: registry is not initialized", ErrNotFound)
	}
	return &settings, nil
}

// Create binds req.ExternalID to a new token. It requires REGISTRAR_ROLE and
// fails with ErrAlreadyExists when the external id is already mapped, whatever
// the other fields hold. Every check runs before the first write.
func (c *Core) Create(caller string, req CreateRequest) (*model.Token, error) {
	if err := c.Pause.RequireActive(); err != nil {
		return nil, err
	}
	if err := c.Roles.Require(RegistrarRole, caller); err != nil {
		return nil, err
	}
	if err := validateKeyPart(req.ExternalID, "externalId", maxExternalIDLength); err != nil {
		return nil, err
	}
	extKey, err := c.externalIDKey(req.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("Create: failed to create external id key for '%s': %w", req.ExternalID, err)
	}
	existing, err := c.state.GetState(extKey)
	if err != nil {
		return nil, fmt.Errorf("Create: failed to check for existing external id '%s': %w", req.ExternalID, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: external id '%s' is already registered", ErrAlreadyExists, req.ExternalID)
	}
	if err := validateAccount(req.Owner, "owner"); err != nil {
		return nil, err
	}
	if req.ContentHash.IsZero() {
		return nil, fmt.Errorf("%w: contentHash cannot be zero", ErrInvalidInput)
	}
	if req.SecretFieldHash.IsZero() {
		return nil, fmt.Errorf("%w: secretFieldHash cannot be zero", ErrInvalidInput)
	}
	if err := validateOptionalString(req.MetadataURI, "metadataUri", maxURILength); err != nil {
		return nil, err
	}
	counterKey, err := c.counterKey()
	if err != nil {
		return nil, fmt.Errorf("Create: failed to create counter key: %w", err)
	}
	lastID, err := getCounter(c.state, counterKey)
	if err != nil {
		return nil, fmt.Errorf("Create: failed to read token counter: %w", err)
	}
	balanceKey, err := c.balanceKey(req.Owner)
	if err != nil {
		return nil, fmt.Errorf("Create: failed to create balance key: %w", err)
	}
	balance, err := getCounter(c.state, balanceKey)
	if err != nil {
		return nil, fmt.Errorf("Create: failed to read balance of '%s': %w", req.Owner, err)
	}
	settings, err := c.Settings()
	if err != nil {
		return nil, err
	}
	now, err := txTimestamp(c.state)
	if err != nil {
		return nil, err
	}

	token := &model.Token{
		ObjectType:      tokenObjectType,
		TokenID:         lastID + 1,
		ExternalID:      req.ExternalID,
		ContentHash:     req.ContentHash.Hex(),
		SecretFieldHash: req.SecretFieldHash.Hex(),
		Schema:          settings.SchemaVersion,
		MetadataURI:     req.MetadataURI,
		Owner:           req.Owner,
		CreatedBy:       caller,
		CreatedAt:       now,
		CreatedTxID:     c.state.GetTxID(),
		LastUpdatedAt:   now,
	}
	tokenKey, err := TokenKey(c.state, token.TokenID)
	if err != nil {
		return nil, fmt.Errorf("Create: failed to create token key: %w", err)
	}

	if err := putJSON(c.state, tokenKey, token); err != nil {
		return nil, fmt.Errorf("Create: failed to save token %d: %w", token.TokenID, err)
	}
	mapping := model.ExternalIDMapping{ObjectType: externalIDObjectType, ExternalID: req.ExternalID, TokenID: token.TokenID}
	if err := putJSON(c.state, extKey, mapping); err != nil {
		return nil, fmt.Errorf("Create: failed to save external id mapping: %w", err)
	}
	if err := putCounter(c.state, counterKey, token.TokenID); err != nil {
		return nil, fmt.Errorf("Create: failed to save token counter: %w", err)
	}
	if err := putCounter(c.state, balanceKey, balance+1); err != nil {
		return nil, fmt.Errorf("Create: failed to save balance of '%s': %w", req.Owner, err)
	}
	if err := emit(c.state, model.EventTokenCreated, model.TokenCreatedEvent{
		TokenID:         token.TokenID,
		ExternalID:      token.ExternalID,
		ContentHash:     token.ContentHash,
		SecretFieldHash: token.SecretFieldHash,
		MetadataURI:     token.MetadataURI,
		Owner:           token.Owner,
		Registrar:       caller,
	}); err != nil {
		return nil, err
	}
	logger.Infof("Token %d created for external id '%s' by registrar '%s'", token.TokenID, token.ExternalID, caller)
	return token, nil
}

// TokenOf returns the token bound to externalID.
func (c *Core) TokenOf(externalID string) (uint64, error) {
	if err := validateKeyPart(externalID, "externalId", maxExternalIDLength); err != nil {
		return 0, err
	}
	key, err := c.externalIDKey(externalID)
	if err != nil {
		return 0, fmt.Errorf("failed to create external id key: %w", err)
	}
	var mapping model.ExternalIDMapping
	found, err := getJSON(c.state, key, &mapping)
	if err != nil {
		return 0, fmt.Errorf("failed to read external id '%s': %w", externalID, err)
	}
	if !found {
		return 0, fmt.Errorf("%w: no token for external id '%s'", ErrNotFound, externalID)
	}
	return mapping.TokenID, nil
}

// Token returns the stored token.
func (c *Core) Token(tokenID uint64) (*model.Token, error) {
	if tokenID == 0 {
		return nil, fmt.Errorf("%w: token 0 does not exist", ErrNotFound)
	}
	key, err := TokenKey(c.state, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to create token key: %w", err)
	}
	var token model.Token
	found, err := getJSON(c.state, key, &token)
	if err != nil {
		return nil, fmt.Errorf("failed to read token %d: %w", tokenID, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: token %d", ErrNotFound, tokenID)
	}
	return &token, nil
}

// OwnerOf returns the owner of a token.
func (c *Core) OwnerOf(tokenID uint64) (string, error) {
	token, err := c.Token(tokenID)
	if err != nil {
		return "", err
	}
	return token.Owner, nil
}

// TokenURI returns the metadata pointer of a token.
func (c *Core) TokenURI(tokenID uint64) (string, error) {
	token, err := c.Token(tokenID)
	if err != nil {
		return "", err
	}
	return token.MetadataURI, nil
}

// BalanceOf counts the tokens owned by owner.
func (c *Core) BalanceOf(owner string) (uint64, error) {
	if err := validateAccount(owner, "owner"); err != nil {
		return 0, err
	}
	key, err := c.balanceKey(owner)
	if err != nil {
		return 0, fmt.Errorf("failed to create balance key: %w", err)
	}
	return getCounter(c.state, key)
}

// TotalSupply is the number of tokens ever created. There is no burn.
func (c *Core) TotalSupply() (uint64, error) {
	key, err := c.counterKey()
	if err != nil {
		return 0, fmt.Errorf("failed to create counter key: %w", err)
	}
	return getCounter(c.state, key)
}

// UpdateMetadataURI replaces the metadata pointer of a token. Who may call
// it follows the metadata policy in the registry settings.
func (c *Core) UpdateMetadataURI(caller string, tokenID uint64, uri string) (*model.Token, error) {
	if err := c.Pause.RequireActive(); err != nil {
		return nil, err
	}
	settings, err := c.Settings()
	if err != nil {
		return nil, err
	}
	if settings.MetadataPolicy == model.PolicyRegistrar {
		if err := c.Roles.Require(RegistrarRole, caller); err != nil {
			return nil, err
		}
	}
	if err := validateOptionalString(uri, "metadataUri", maxURILength); err != nil {
		return nil, err
	}
	token, err := c.Token(tokenID)
	if err != nil {
		return nil, err
	}
	if err := c.authorizeMetadataUpdate(settings.MetadataPolicy, caller, token); err != nil {
		return nil, err
	}
	now, err := txTimestamp(c.state)
	if err != nil {
		return nil, err
	}

	oldURI := token.MetadataURI
	token.MetadataURI = uri
	token.LastUpdatedAt = now
	key, err := TokenKey(c.state, tokenID)
	if err != nil {
		return nil, fmt.Errorf("UpdateMetadataURI: failed to create token key: %w", err)
	}
	if err := putJSON(c.state, key, token); err != nil {
		return nil, fmt.Errorf("UpdateMetadataURI: failed to save token %d: %w", tokenID, err)
	}
	if err := emit(c.state, model.EventMetadataUpdate, model.MetadataUpdateEvent{
		TokenID: tokenID, OldURI: oldURI, NewURI: uri, Sender: caller,
	}); err != nil {
		return nil, err
	}
	logger.Infof("Metadata URI of token %d updated by '%s'", tokenID, caller)
	return token, nil
}

func (c *Core) authorizeMetadataUpdate(policy model.MetadataPolicy, caller string, token *model.Token) error {
	switch policy {
	case model.PolicyRegistrar:
		return nil // checked before the token read
	case model.PolicyOwner:
		if caller != token.Owner {
			return fmt.Errorf("%w: only the owner of token %d may update its metadata", ErrUnauthorized, token.TokenID)
		}
		return nil
	case model.PolicyRegistrarOrOwner:
		if caller == token.Owner {
			return nil
		}
		if err := c.Roles.Require(RegistrarRole, caller); err != nil {
			return fmt.Errorf("%w: caller is neither a registrar nor the owner of token %d", ErrUnauthorized, token.TokenID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown metadata policy '%s'", ErrInvalidInput, policy)
	}
}

// Transfer moves a token to a new owner. Only the current owner may call it.
func (c *Core) Transfer(caller string, tokenID uint64, to string) (*model.Token, error) {
	if err := c.Pause.RequireActive(); err != nil {
		return nil, err
	}
	if err := validateAccount(to, "to"); err != nil {
		return nil, err
	}
	token, err := c.Token(tokenID)
	if err != nil {
		return nil, err
	}
	if caller != token.Owner {
		return nil, fmt.Errorf("%w: only the owner of token %d may transfer it", ErrUnauthorized, tokenID)
	}
	if to == token.Owner {
		return nil, fmt.Errorf("%w: token %d is already owned by '%s'", ErrInvalidInput, tokenID, to)
	}

	fromKey, err := c.balanceKey(token.Owner)
	if err != nil {
		return nil, fmt.Errorf("Transfer: failed to create balance key: %w", err)
	}
	toKey, err := c.balanceKey(to)
	if err != nil {
		return nil, fmt.Errorf("Transfer: failed to create balance key: %w", err)
	}
	fromBalance, err := getCounter(c.state, fromKey)
	if err != nil {
		return nil, fmt.Errorf("Transfer: failed to read balance: %w", err)
	}
	toBalance, err := getCounter(c.state, toKey)
	if err != nil {
		return nil, fmt.Errorf("Transfer: failed to read balance: %w", err)
	}
	if fromBalance == 0 {
		return nil, fmt.Errorf("Transfer: balance of '%s' is inconsistent with token %d", token.Owner, tokenID)
	}
	now, err := txTimestamp(c.state)
	if err != nil {
		return nil, err
	}
	tokenKey, err := TokenKey(c.state, tokenID)
	if err != nil {
		return nil, fmt.Errorf("Transfer: failed to create token key: %w", err)
	}

	from := token.Owner
	token.Owner = to
	token.LastUpdatedAt = now
	if err := putJSON(c.state, tokenKey, token); err != nil {
		return nil, fmt.Errorf("Transfer: failed to save token %d: %w", tokenID, err)
	}
	if err := putCounter(c.state, fromKey, fromBalance-1); err != nil {
		return nil, fmt.Errorf("Transfer: failed to save balance: %w", err)
	}
	if err := putCounter(c.state, toKey, toBalance+1); err != nil {
		return nil, fmt.Errorf("Transfer: failed to save balance: %w", err)
	}
	if err := emit(c.state, model.EventTransfer, model.TransferEvent{TokenID: tokenID, From: from, To: to}); err != nil {
		return nil, err
	}
	logger.Infof("Token %d transferred from '%s' to '%s'", tokenID, from, to)
	return token, nil
}

// Verify recomputes the fingerprint of doc under the token's schema and
// compares it with the anchored contentHash. A malformed document is
// ErrInvalidInput, not a mismatch.
func (c *Core) Verify(tokenID uint64, doc anchor.Document) (*model.VerifyResult, error) {
	token, schema, err := c.tokenWithSchema(tokenID)
	if err != nil {
		return nil, err
	}
	canonical, err := anchor.Canonicalize(schema, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	computed := anchor.Fingerprint(canonical)
	return compareDigest(token, computed, token.ContentHash)
}

// VerifyDocument is Verify over raw JSON.
func (c *Core) VerifyDocument(tokenID uint64, data []byte) (*model.VerifyResult, error) {
	doc, err := anchor.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return c.Verify(tokenID, doc)
}

// VerifySecretField checks sensitive values alone, given in the schema's
// selector order, against the anchored secretFieldHash.
func (c *Core) VerifySecretField(tokenID uint64, values ...string) (*model.VerifyResult, error) {
	token, schema, err := c.tokenWithSchema(tokenID)
	if err != nil {
		return nil, err
	}
	computed, err := schema.HashSecrets(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return compareDigest(token, computed, token.SecretFieldHash)
}

func (c *Core) tokenWithSchema(tokenID uint64) (*model.Token, *anchor.Schema, error) {
	token, err := c.Token(tokenID)
	if err != nil {
		return nil, nil, err
	}
	schema, err := anchor.LookupSchema(token.Schema)
	if err != nil {
		return nil, nil, fmt.Errorf("token %d: %w", tokenID, err)
	}
	return token, schema, nil
}

func compareDigest(token *model.Token, computed anchor.Digest, storedHex string) (*model.VerifyResult, error) {
	stored, err := anchor.ParseDigest(storedHex)
	if err != nil {
		return nil, fmt.Errorf("token %d carries a corrupt fingerprint: %w", token.TokenID, err)
	}
	match := stored == computed
	if !match {
		logger.Debugf("Fingerprint mismatch for token %d: computed %s, stored %s", token.TokenID, computed, stored)
	}
	return &model.VerifyResult{
		TokenID:  token.TokenID,
		Match:    match,
		Computed: computed.Hex(),
		Stored:   stored.Hex(),
	}, nil
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
