package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-protos-go/peer"
	"github.com/stretchr/testify/require"

	"horseregistry/anchor"
	"horseregistry/model"
)

const (
	admin     = "admin"
	registrar = "registrar"
	pauser    = "pauser"
	owner     = "0x2ca7f4a3b9ab1f4e12d3f3f2f0a1c0d9e8b7a6c5"
	outsider  = "outsider"
)

type fixture struct {
	t      *testing.T
	stub   *shimtest.MockStub
	seq    int
	events []*peer.ChaincodeEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, stub: shimtest.NewMockStub("horseregistry", nil)}
}

// initialized returns a fixture with admin as default admin, registrar and
// pauser holding their roles.
func initialized(t *testing.T) *fixture {
	f := newFixture(t)
	f.mustTx(func(c *Core) error {
		_, err := c.Initialize(admin, model.RegistrySettings{})
		return err
	})
	f.mustTx(func(c *Core) error {
		_, err := c.Roles.GrantRole(admin, RegistrarRole, registrar)
		return err
	})
	f.mustTx(func(c *Core) error {
		_, err := c.Roles.GrantRole(admin, PauserRole, pauser)
		return err
	})
	return f
}

// tx runs fn as one transaction and returns the events it emitted.
func (f *fixture) tx(fn func(c *Core) error) ([]*peer.ChaincodeEvent, error) {
	f.seq++
	txID := fmt.Sprintf("tx-%03d", f.seq)
	f.stub.MockTransactionStart(txID)
	err := fn(NewCore(f.stub))
	f.stub.MockTransactionEnd(txID)
	return f.drain(), err
}

func (f *fixture) mustTx(fn func(c *Core) error) []*peer.ChaincodeEvent {
	f.t.Helper()
	events, err := f.tx(fn)
	require.NoError(f.t, err)
	return events
}

// query runs fn outside of any transaction.
func (f *fixture) query(fn func(c *Core) error) error {
	return fn(NewCore(f.stub))
}

func (f *fixture) drain() []*peer.ChaincodeEvent {
	var out []*peer.ChaincodeEvent
	for {
		select {
		case ev := <-f.stub.ChaincodeEventsChannel:
			out = append(out, ev)
			f.events = append(f.events, ev)
		default:
			return out
		}
	}
}

func (f *fixture) snapshot() map[string]string {
	out := make(map[string]string, len(f.stub.State))
	for k, v := range f.stub.State {
		out[k] = string(v)
	}
	return out
}

func (f *fixture) create(externalID string) (*model.Token, error) {
	var token *model.Token
	_, err := f.tx(func(c *Core) error {
		var err error
		token, err = c.Create(registrar, referenceRequest(f.t, externalID))
		return err
	})
	return token, err
}

func referenceDocument(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "anchor", "testdata", "golden", "horse_record_v1.golden"))
	require.NoError(t, err)
	return data
}

func referenceRequest(t *testing.T, externalID string) CreateRequest {
	t.Helper()
	doc, err := anchor.ParseDocument(referenceDocument(t))
	require.NoError(t, err)
	a, err := anchor.Anchor(anchor.HorseRecordV1, doc)
	require.NoError(t, err)
	return CreateRequest{
		Owner:           owner,
		ExternalID:      externalID,
		ContentHash:     a.ContentHash,
		SecretFieldHash: a.SecretFieldHash,
		MetadataURI:     "ipfs://bafy-initial",
	}
}
