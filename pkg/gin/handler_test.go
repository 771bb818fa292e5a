package gin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rewards "github.com/questlabs/rewards-go"
	"github.com/questlabs/rewards-go/pkg/chainclient"
	"github.com/questlabs/rewards-go/pkg/ratelimit"
	evmsigners "github.com/questlabs/rewards-go/signers/evm"
	"github.com/questlabs/rewards-go/test/mocks/node"
)

const testTokenContract = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	node   *node.Node
	router *gin.Engine
	user   *evmsigners.LocalKeySigner
	wallet *evmsigners.LocalKeySigner
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newSigner(t *testing.T) *evmsigners.LocalKeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return evmsigners.NewLocalKeySignerFromKey(key)
}

func newServer(t *testing.T, mode rewards.ConfirmationMode, opts ...Options) *server {
	t.Helper()

	n := node.NewDefault()
	t.Cleanup(n.Close)
	client, err := chainclient.Dial(context.Background(), n.URL(), chainclient.WithTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	s := &server{node: n, user: newSigner(t), wallet: newSigner(t)}
	d := rewards.NewDisburser(
		rewards.Settings{TokenContract: testTokenContract, ChainID: 84532, ExplorerURL: "https://sepolia.basescan.org"},
		rewards.WithGateway(client),
		rewards.WithSigner(s.wallet),
		rewards.WithLogger(quietLogger()),
		rewards.WithConfirmation(mode, 3, time.Millisecond),
	)
	t.Cleanup(d.Close)

	s.router = NewRouter(d, append([]Options{WithLogger(quietLogger())}, opts...)...)
	return s
}

func (s *server) signedClaim(t *testing.T, taskID string, reward int64, nonce string) map[string]interface{} {
	t.Helper()
	expiry := time.Now().Add(5 * time.Minute).Unix()
	message := fmt.Sprintf("Claim %d tokens for %s\nNonce: %s\nExpiry: %d", reward, taskID, nonce, expiry)
	sig, err := s.user.SignMessage(message)
	require.NoError(t, err)
	return map[string]interface{}{
		"taskId":    taskID,
		"address":   s.user.Address().Hex(),
		"message":   message,
		"signature": hexutil.Encode(sig),
		"nonce":     nonce,
		"expiry":    expiry,
		"reward":    reward,
	}
}

func (s *server) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func TestClaimRewardSuccess(t *testing.T) {
	s := newServer(t, rewards.ConfirmationBlocking)

	w, body := s.do(t, http.MethodPost, ClaimPath, s.signedClaim(t, "first_portfolio_scan", 25, "n-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, true, body["success"])
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, body["txHash"])
	assert.Equal(t, 17.0, body["blockNumber"])
	assert.Equal(t, 52000.0, body["gasUsed"])
	assert.Equal(t, 25.0, body["amount"])
	assert.Equal(t, s.user.Address().Hex(), body["recipient"])
	assert.Equal(t, testTokenContract, body["contract"])
	assert.Equal(t, "https://sepolia.basescan.org/tx/"+body["txHash"].(string), body["explorerUrl"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)

	// status endpoint sees the confirmed transfer
	w, status := s.do(t, http.MethodGet, "/api/claim-reward/status/"+body["txHash"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confirmed", status["status"])
	assert.Equal(t, 25.0, status["reward"])
}

func TestClaimRewardDuplicate(t *testing.T) {
	s := newServer(t, rewards.ConfirmationBlocking)
	claim := s.signedClaim(t, "daily_checkin", 5, "dup")

	w, _ := s.do(t, http.MethodPost, ClaimPath, claim)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := s.do(t, http.MethodPost, ClaimPath, claim)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, rewards.ErrCodeDuplicateClaim, body["code"])
}

func TestClaimRewardErrors(t *testing.T) {
	s := newServer(t, rewards.ConfirmationBlocking)

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"empty body", nil, http.StatusBadRequest, rewards.ErrCodeValidation},
		{"missing fields", map[string]interface{}{"address": s.user.Address().Hex()}, http.StatusBadRequest, rewards.ErrCodeValidation},
		{"wrong amount", s.signedClaim(t, "daily_checkin", 500, "a"), http.StatusBadRequest, rewards.ErrCodePolicyViolation},
		{"unknown task", s.signedClaim(t, "mine_bitcoin", 5, "b"), http.StatusBadRequest, rewards.ErrCodePolicyViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, ClaimPath, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}

	forged := s.signedClaim(t, "daily_checkin", 5, "c")
	forged["address"] = s.wallet.Address().Hex()
	w, body := s.do(t, http.MethodPost, ClaimPath, forged)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, rewards.ErrCodeValidation, body["code"])

	other := newSigner(t)
	forged = s.signedClaim(t, "daily_checkin", 5, "d")
	forged["address"] = other.Address().Hex()
	w, body = s.do(t, http.MethodPost, ClaimPath, forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, rewards.ErrCodeAuthentication, body["code"])
}

func TestClaimRewardPendingAndReverted(t *testing.T) {
	s := newServer(t, rewards.ConfirmationBlocking)

	s.node.SetReceiptPending()
	w, body := s.do(t, http.MethodPost, ClaimPath, s.signedClaim(t, "daily_checkin", 5, "p"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", body["status"])
	assert.NotEmpty(t, body["txHash"])
	assert.NotEmpty(t, body["explorerUrl"])
	assert.NotContains(t, body, "blockNumber")

	s.node.SetReceiptStatus(0)
	w, body = s.do(t, http.MethodPost, ClaimPath, s.signedClaim(t, "daily_checkin", 5, "r"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, rewards.ErrCodeTransactionReverted, body["code"])
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, body["txHash"])
}

func TestClaimRewardAsync(t *testing.T) {
	s := newServer(t, rewards.ConfirmationAsync)

	w, body := s.do(t, http.MethodPost, ClaimPath, s.signedClaim(t, "view_ai_insights", 15, "async"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "submitted", body["status"])

	txHash := body["txHash"].(string)
	assert.Eventually(t, func() bool {
		_, status := s.do(t, http.MethodGet, "/api/claim-reward/status/"+txHash, nil)
		return status["status"] == "confirmed"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClaimRewardNodeUnavailable(t *testing.T) {
	s := newServer(t, rewards.ConfirmationBlocking)
	claim := s.signedClaim(t, "daily_checkin", 5, "down")
	s.node.Close()

	w, body := s.do(t, http.MethodPost, ClaimPath, claim)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, rewards.ErrCodeChainUnavailable, body["code"])
}

func TestHealth(t *testing.T) {
	s := newServer(t, rewards.ConfirmationBlocking)

	w, body := s.do(t, http.MethodGet, ClaimPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, 16.0, body["blockNumber"])
	assert.Equal(t, s.wallet.Address().Hex(), body["walletAddress"])
	assert.Equal(t, testTokenContract, body["contract"])
	assert.Equal(t, 84532.0, body["chainId"])

	s.node.Close()
	w, body = s.do(t, http.MethodGet, ClaimPath, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", body["status"])
	assert.NotEmpty(t, body["error"])
}

func TestHealthUnconfigured(t *testing.T) {
	router := NewRouter(rewards.NewDisburser(rewards.Settings{}, rewards.WithLogger(quietLogger())), WithLogger(quietLogger()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, ClaimPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, ClaimPath, bytes.NewBufferString(`{"address":"0x01"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimRewardBodyTooLarge(t *testing.T) {
	s := newServer(t, rewards.ConfirmationBlocking)

	claim := s.signedClaim(t, "daily_checkin", 5, "big")
	claim["message"] = strings.Repeat("a", MaxClaimBodyBytes)
	w, body := s.do(t, http.MethodPost, ClaimPath, claim)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Zero(t, s.node.Calls("eth_sendRawTransaction"))
}

func TestStatusLookup(t *testing.T) {
	s := newServer(t, rewards.ConfirmationBlocking)

	w, body := s.do(t, http.MethodGet, "/api/claim-reward/status/0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, rewards.ErrCodeValidation, body["code"])

	w, _ = s.do(t, http.MethodGet, "/api/claim-reward/status/0x"+fmt.Sprintf("%064x", 1), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClaimMiddlewareAndMetrics(t *testing.T) {
	limiter := ratelimit.New(0.001, 1, quietLogger())
	s := newServer(t, rewards.ConfirmationBlocking,
		WithClaimMiddleware(limiter.Middleware()),
		WithMetricsHandler(promhttp.Handler()),
	)

	w, _ := s.do(t, http.MethodPost, ClaimPath, s.signedClaim(t, "daily_checkin", 5, "rl-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodPost, ClaimPath, s.signedClaim(t, "daily_checkin", 5, "rl-2"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// health is not rate limited
	w, _ = s.do(t, http.MethodGet, ClaimPath, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, MetricsPath, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
