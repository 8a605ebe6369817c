package contract

import (
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/stretchr/testify/require"

	"horseregistry/anchor"
)

const (
	adminID     = "x509::CN=admin,OU=client::CN=ca.org1.example.com"
	registrarID = "x509::CN=registrar,OU=client::CN=ca.org1.example.com"
	pauserID    = "x509::CN=pauser,OU=client::CN=ca.org1.example.com"
	ownerID     = "x509::CN=owner,OU=client::CN=ca.org1.example.com"
	outsiderID  = "x509::CN=outsider,OU=client::CN=ca.org1.example.com"
	mspID       = "Org1MSP"
)

type fakeIdentity struct {
	id    string
	mspID string
}

var _ cid.ClientIdentity = (*fakeIdentity)(nil)

func (f *fakeIdentity) GetID() (string, error)    { return f.id, nil }
func (f *fakeIdentity) GetMSPID() (string, error) { return f.mspID, nil }
func (f *fakeIdentity) GetAttributeValue(string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeIdentity) AssertAttributeValue(string, string) error { return nil }
func (f *fakeIdentity) GetX509Certificate() (*x509.Certificate, error) {
	return nil, nil
}

// historyStub records the history of every key the way a peer's history
// database would, which the mock stub does not.
type historyStub struct {
	*shimtest.MockStub
	history map[string][]*queryresult.KeyModification
}

func (s *historyStub) PutState(key string, value []byte) error {
	if err := s.MockStub.PutState(key, value); err != nil {
		return err
	}
	ts, err := s.GetTxTimestamp()
	if err != nil {
		return err
	}
	s.history[key] = append(s.history[key], &queryresult.KeyModification{
		TxId: s.GetTxID(), Value: value, Timestamp: ts,
	})
	return nil
}

func (s *historyStub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	return &historyIterator{entries: s.history[key]}, nil
}

type historyIterator struct {
	entries []*queryresult.KeyModification
	pos     int
}

func (it *historyIterator) HasNext() bool { return it.pos < len(it.entries) }
func (it *historyIterator) Close() error  { return nil }
func (it *historyIterator) Next() (*queryresult.KeyModification, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("no more history")
	}
	it.pos++
	return it.entries[it.pos-1], nil
}

type harness struct {
	t      *testing.T
	stub   shim.ChaincodeStubInterface
	mock   *shimtest.MockStub
	cc     *HorseRegistryContract
	seq    int
	lastTx string
}

func newHarness(t *testing.T, withHistory bool) *harness {
	mock := shimtest.NewMockStub("horseregistry", nil)
	h := &harness{t: t, mock: mock, stub: mock, cc: new(HorseRegistryContract)}
	if withHistory {
		h.stub = &historyStub{MockStub: mock, history: map[string][]*queryresult.KeyModification{}}
	}
	return h
}

func (h *harness) ctx(caller string) contractapi.TransactionContextInterface {
	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(h.stub)
	if caller != "" {
		ctx.SetClientIdentity(&fakeIdentity{id: caller, mspID: mspID})
	}
	return ctx
}

// invoke runs fn as one transaction submitted by caller.
func (h *harness) invoke(caller string, fn func(ctx contractapi.TransactionContextInterface) error) error {
	h.seq++
	h.lastTx = fmt.Sprintf("tx-%03d", h.seq)
	h.mock.MockTransactionStart(h.lastTx)
	err := fn(h.ctx(caller))
	h.mock.MockTransactionEnd(h.lastTx)
	for len(h.mock.ChaincodeEventsChannel) > 0 {
		<-h.mock.ChaincodeEventsChannel
	}
	return err
}

func (h *harness) mustInvoke(caller string, fn func(ctx contractapi.TransactionContextInterface) error) {
	h.t.Helper()
	require.NoError(h.t, h.invoke(caller, fn))
}

// bootstrap initializes the registry with adminID and appoints the
// registrar and the pauser.
func (h *harness) bootstrap() {
	h.t.Helper()
	h.mustInvoke(adminID, func(ctx contractapi.TransactionContextInterface) error {
		_, err := h.cc.Initialize(ctx, "", "", "")
		return err
	})
	h.mustInvoke(adminID, func(ctx contractapi.TransactionContextInterface) error {
		_, err := h.cc.GrantRole(ctx, "REGISTRAR_ROLE", registrarID)
		return err
	})
	h.mustInvoke(adminID, func(ctx contractapi.TransactionContextInterface) error {
		_, err := h.cc.GrantRole(ctx, "PAUSER_ROLE", pauserID)
		return err
	})
}

func referenceDocument(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "anchor", "testdata", "golden", "horse_record_v1.golden"))
	require.NoError(t, err)
	return string(data)
}

func referenceAnchors(t *testing.T) *anchor.Anchors {
	t.Helper()
	doc, err := anchor.ParseDocument([]byte(referenceDocument(t)))
	require.NoError(t, err)
	a, err := anchor.Anchor(anchor.HorseRecordV1, doc)
	require.NoError(t, err)
	return a
}
