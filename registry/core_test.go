package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horseregistry/anchor"
	"horseregistry/model"
)

func TestCreateRequiresRegistrar(t *testing.T) {
	f := newFixture(t)
	f.mustTx(func(c *Core) error {
		_, err := c.Initialize(admin, model.RegistrySettings{})
		return err
	})

	_, err := f.create("1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	f.mustTx(func(c *Core) error {
		_, err := c.Roles.GrantRole(admin, RegistrarRole, registrar)
		return err
	})
	token, err := f.create("1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), token.TokenID)
}

func TestCreateAndLookupScenario(t *testing.T) {
	f := initialized(t)
	req := referenceRequest(t, "1")

	events, err := f.tx(func(c *Core) error {
		_, err := c.Create(registrar, req)
		return err
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTokenCreated, events[0].EventName)
	var created model.TokenCreatedEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &created))
	assert.Equal(t, uint64(1), created.TokenID)
	assert.Equal(t, "0x02989e417b57026a21ddb3571df5aa66af3130485a22c38cc797720f516e8374", created.ContentHash)
	assert.Equal(t, registrar, created.Registrar)

	var before *model.Token
	require.NoError(t, f.query(func(c *Core) error {
		id, err := c.TokenOf("1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)
		before, err = c.Token(id)
		return err
	}))
	assert.Equal(t, "horse-record/v1", before.Schema)
	assert.Equal(t, owner, before.Owner)

	events = f.mustTx(func(c *Core) error {
		_, err := c.UpdateMetadataURI(registrar, 1, "ipfs://bafy-updated")
		return err
	})
	require.Len(t, events, 1)
	var update model.MetadataUpdateEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &update))
	assert.Equal(t, model.MetadataUpdateEvent{TokenID: 1, OldURI: "ipfs://bafy-initial", NewURI: "ipfs://bafy-updated", Sender: registrar}, update)

	require.NoError(t, f.query(func(c *Core) error {
		after, err := c.Token(1)
		require.NoError(t, err)
		assert.Equal(t, "ipfs://bafy-updated", after.MetadataURI)

		after.MetadataURI = before.MetadataURI
		after.LastUpdatedAt = before.LastUpdatedAt
		assert.Equal(t, before, after, "only the metadata URI may change")
		return nil
	}))

	_, err = f.create("1")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, f.query(func(c *Core) error {
		id, err := c.TokenOf("1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)
		supply, err := c.TotalSupply()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), supply)
		return nil
	}))
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	f := initialized(t)
	for i := 1; i <= 5; i++ {
		token, err := f.create(fmt.Sprintf("horse-%d", i))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), token.TokenID)
	}
	require.NoError(t, f.query(func(c *Core) error {
		supply, err := c.TotalSupply()
		require.NoError(t, err)
		assert.Equal(t, uint64(5), supply)
		balance, err := c.BalanceOf(owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), balance)
		return nil
	}))
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := initialized(t)
	valid := referenceRequest(t, "1")

	cases := map[string]func(r *CreateRequest){
		"empty external id":  func(r *CreateRequest) { r.ExternalID = " " },
		"long external id":   func(r *CreateRequest) { r.ExternalID = string(make([]byte, maxExternalIDLength+1)) },
		"empty owner":        func(r *CreateRequest) { r.Owner = "" },
		"zero content hash":  func(r *CreateRequest) { r.ContentHash = anchor.Digest{} },
		"zero secret hash":   func(r *CreateRequest) { r.SecretFieldHash = anchor.Digest{} },
		"invalid utf8 uri":   func(r *CreateRequest) { r.MetadataURI = "\xff" },
		"nul in external id": func(r *CreateRequest) { r.ExternalID = "a\x00b" },
	}
	before := f.snapshot()
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			_, err := f.tx(func(c *Core) error {
				_, err := c.Create(registrar, req)
				return err
			})
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, "InvalidInput", Code(err))
		})
	}
	assert.Equal(t, before, f.snapshot())
}

func TestCreateDuplicateWinsOverOtherInputErrors(t *testing.T) {
	f := initialized(t)
	_, err := f.create("1")
	require.NoError(t, err)
	valid := referenceRequest(t, "1")

	cases := map[string]func(r *CreateRequest){
		"same request":      func(r *CreateRequest) {},
		"empty owner":       func(r *CreateRequest) { r.Owner = "" },
		"other owner":       func(r *CreateRequest) { r.Owner = outsider },
		"zero content hash": func(r *CreateRequest) { r.ContentHash = anchor.Digest{} },
		"zero secret hash":  func(r *CreateRequest) { r.SecretFieldHash = anchor.Digest{} },
		"invalid utf8 uri":  func(r *CreateRequest) { r.MetadataURI = "\xff" },
	}
	before := f.snapshot()
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			_, err := f.tx(func(c *Core) error {
				_, err := c.Create(registrar, req)
				return err
			})
			assert.ErrorIs(t, err, ErrAlreadyExists)
			assert.Equal(t, "AlreadyExists", Code(err))
		})
	}
	assert.Equal(t, before, f.snapshot())
}

func TestLookupsOfMissingTokens(t *testing.T) {
	f := initialized(t)
	require.NoError(t, f.query(func(c *Core) error {
		_, err := c.TokenOf("nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = c.Token(0)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = c.OwnerOf(7)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = c.VerifyDocument(7, referenceDocument(t))
		assert.True(t, IsNotFound(err))
		balance, err := c.BalanceOf(outsider)
		require.NoError(t, err)
		assert.Zero(t, balance)
		return nil
	}))

	_, err := f.tx(func(c *Core) error {
		_, err := c.UpdateMetadataURI(registrar, 7, "ipfs://x")
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMetadataURIRequiresRegistrarByDefault(t *testing.T) {
	f := initialized(t)
	_, err := f.create("1")
	require.NoError(t, err)

	for _, caller := range []string{owner, admin, outsider} {
		_, err := f.tx(func(c *Core) error {
			_, err := c.UpdateMetadataURI(caller, 1, "ipfs://x")
			return err
		})
		assert.ErrorIs(t, err, ErrUnauthorized, caller)
	}
}

func TestUpdateMetadataURIPolicies(t *testing.T) {
	cases := []struct {
		policy  model.MetadataPolicy
		allowed map[string]bool
	}{
		{model.PolicyOwner, map[string]bool{owner: true, registrar: false, outsider: false}},
		{model.PolicyRegistrarOrOwner, map[string]bool{owner: true, registrar: true, outsider: false}},
	}
	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			f := newFixture(t)
			f.mustTx(func(c *Core) error {
				_, err := c.Initialize(admin, model.RegistrySettings{MetadataPolicy: tc.policy})
				return err
			})
			f.mustTx(func(c *Core) error {
				_, err := c.Roles.GrantRole(admin, RegistrarRole, registrar)
				return err
			})
			_, err := f.create("1")
			require.NoError(t, err)

			for caller, ok := range tc.allowed {
				_, err := f.tx(func(c *Core) error {
					_, err := c.UpdateMetadataURI(caller, 1, "ipfs://by-"+caller)
					return err
				})
				if ok {
					assert.NoError(t, err, caller)
				} else {
					assert.ErrorIs(t, err, ErrUnauthorized, caller)
				}
			}
		})
	}
}

func TestTransfer(t *testing.T) {
	f := initialized(t)
	_, err := f.create("1")
	require.NoError(t, err)

	_, err = f.tx(func(c *Core) error {
		_, err := c.Transfer(registrar, 1, outsider)
		return err
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.tx(func(c *Core) error {
		_, err := c.Transfer(owner, 1, owner)
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	events := f.mustTx(func(c *Core) error {
		_, err := c.Transfer(owner, 1, outsider)
		return err
	})
	require.Len(t, events, 1)
	var ev model.TransferEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &ev))
	assert.Equal(t, model.TransferEvent{TokenID: 1, From: owner, To: outsider}, ev)

	require.NoError(t, f.query(func(c *Core) error {
		newOwner, err := c.OwnerOf(1)
		require.NoError(t, err)
		assert.Equal(t, outsider, newOwner)
		from, err := c.BalanceOf(owner)
		require.NoError(t, err)
		assert.Zero(t, from)
		to, err := c.BalanceOf(outsider)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), to)
		return nil
	}))
}

func TestVerify(t *testing.T) {
	f := initialized(t)
	_, err := f.create("1")
	require.NoError(t, err)
	data := referenceDocument(t)

	require.NoError(t, f.query(func(c *Core) error {
		res, err := c.VerifyDocument(1, data)
		require.NoError(t, err)
		assert.True(t, res.Match)
		assert.Equal(t, res.Stored, res.Computed)

		doc, err := anchor.ParseDocument(data)
		require.NoError(t, err)
		doc["cavalo"].(map[string]any)["nome"] = "Bruna"
		res, err = c.Verify(1, doc)
		require.NoError(t, err)
		assert.False(t, res.Match)

		_, err = c.VerifyDocument(1, []byte(`{"cavalo":{}}`))
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.ErrorIs(t, err, anchor.ErrInvalidDocument)

		_, err = c.VerifyDocument(1, []byte(`not json`))
		assert.ErrorIs(t, err, ErrInvalidInput)
		return nil
	}))
}

func TestVerifySecretField(t *testing.T) {
	f := initialized(t)
	_, err := f.create("1")
	require.NoError(t, err)

	require.NoError(t, f.query(func(c *Core) error {
		res, err := c.VerifySecretField(1, "982000362646702")
		require.NoError(t, err)
		assert.True(t, res.Match)
		assert.Equal(t, "0x874c835fe5a157e0b11ccba1ac0d4445ba1e29981d88f6c9848de1611e497cf8", res.Stored)

		res, err = c.VerifySecretField(1, "982000362646703")
		require.NoError(t, err)
		assert.False(t, res.Match)

		_, err = c.VerifySecretField(1)
		assert.ErrorIs(t, err, ErrInvalidInput)
		return nil
	}))
}

func TestSettingsBeforeInitialize(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.query(func(c *Core) error {
		_, err := c.Settings()
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", ErrUnauthorized), "Unauthorized"},
		{fmt.Errorf("x: %w", ErrAlreadyExists), "AlreadyExists"},
		{fmt.Errorf("x: %w", ErrNotFound), "NotFound"},
		{fmt.Errorf("x: %w", ErrPaused), "Paused"},
		{fmt.Errorf("x: %w", ErrInvalidInput), "InvalidInput"},
		{fmt.Errorf("x: %w", anchor.ErrInvalidDocument), "InvalidInput"},
		{errors.New("disk on fire"), "Internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Code(tc.err), "%v", tc.err)
	}
}
