// internal/tests/purchase_test.go
package tests

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/router"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/store/memory"
)

func (suite *APITestSuite) publish(owner session, price string, reportAccount *uuid.UUID) uuid.UUID {
	body := map[string]interface{}{
		"name":              "Night Drive",
		"artist":            "The Owners",
		"content_reference": "s3://songs/night-drive.flac",
		"price":             price,
	}
	if reportAccount != nil {
		body["report_account"] = reportAccount.String()
	}
	code, response := suite.do(http.MethodPost, "/v1/listings", owner.Token, body)
	require.Equal(suite.T(), http.StatusCreated, code, string(response.Data))

	var data struct {
		Listing models.Listing `json:"listing"`
	}
	require.NoError(suite.T(), json.Unmarshal(response.Data, &data))
	return data.Listing.ID
}

func (suite *APITestSuite) balance(account models.AccountID) string {
	amount, err := suite.services.Ledger.BalanceOf(context.Background(), account)
	require.NoError(suite.T(), err)
	return amount.String()
}

func (suite *APITestSuite) TestPurchaseFlow() {
	owner := suite.register("owner")
	buyer := suite.register("buyer")
	outsider := suite.register("outsider")
	reporter := uuid.New()
	suite.fund(buyer.ID, 1000)

	listingID := suite.publish(owner, "100", &reporter)
	base := "/v1/listings/" + listingID.String()

	code, response := suite.do(http.MethodPost, base+"/intents", buyer.Token, map[string]interface{}{
		"public_key": "buyer-public-key",
		"payment":    map[string]interface{}{"amount": "110"},
	})
	require.Equal(suite.T(), http.StatusCreated, code, string(response.Data))
	assert.Equal(suite.T(), "890", suite.balance(buyer.ID))
	assert.Equal(suite.T(), "110", suite.balance(models.EscrowAccount(listingID)))

	code, response = suite.do(http.MethodPost, base+"/intents", buyer.Token, map[string]interface{}{
		"public_key": "buyer-public-key",
		"payment":    map[string]interface{}{"amount": "110"},
	})
	assert.Equal(suite.T(), http.StatusConflict, code)
	assert.Equal(suite.T(), string(services.KindAlreadyOnList), response.Error.Code)

	code, response = suite.do(http.MethodGet, base+"/access", buyer.Token, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var access services.Access
	require.NoError(suite.T(), json.Unmarshal(response.Data, &access))
	assert.Equal(suite.T(), models.AccessPending, access.Kind)

	code, response = suite.do(http.MethodGet, base+"/intents/"+buyer.ID.String()+"/key", owner.Token, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var key struct {
		PublicKey string `json:"public_key"`
	}
	require.NoError(suite.T(), json.Unmarshal(response.Data, &key))
	assert.Equal(suite.T(), "buyer-public-key", key.PublicKey)

	code, _ = suite.do(http.MethodPost, base+"/intents/"+buyer.ID.String()+"/confirm", outsider.Token, map[string]interface{}{
		"encrypted_key": "k1",
		"location":      "Qm123",
	})
	assert.Equal(suite.T(), http.StatusForbidden, code)

	code, response = suite.do(http.MethodPost, base+"/intents/"+buyer.ID.String()+"/confirm", owner.Token, map[string]interface{}{
		"encrypted_key": "k1",
		"location":      "Qm123",
	})
	require.Equal(suite.T(), http.StatusOK, code, string(response.Data))
	var confirmed struct {
		ReceiptCode string `json:"receipt_code"`
	}
	require.NoError(suite.T(), json.Unmarshal(response.Data, &confirmed))
	assert.NotEmpty(suite.T(), confirmed.ReceiptCode)

	assert.Equal(suite.T(), "100", suite.balance(owner.ID))
	assert.Equal(suite.T(), "10", suite.balance(reporter))
	assert.Equal(suite.T(), "0", suite.balance(models.EscrowAccount(listingID)))

	code, response = suite.do(http.MethodGet, base+"/delivery", buyer.Token, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var delivery models.Delivery
	require.NoError(suite.T(), json.Unmarshal(response.Data, &delivery))
	assert.Equal(suite.T(), "Qm123", delivery.Location)
	assert.Equal(suite.T(), "k1", delivery.EncryptedKey)

	code, response = suite.do(http.MethodGet, base+"/delivery", outsider.Token, nil)
	assert.Equal(suite.T(), http.StatusNotFound, code)
	assert.Equal(suite.T(), string(services.KindNotOnBuyersList), response.Error.Code)

	code, response = suite.do(http.MethodGet, base+"/access", outsider.Token, nil, "Accept-Language", "es-ES,es;q=0.9")
	require.Equal(suite.T(), http.StatusOK, code)
	require.NoError(suite.T(), json.Unmarshal(response.Data, &access))
	assert.Equal(suite.T(), models.AccessUnauthorized, access.Kind)
	assert.Equal(suite.T(), "No tienes permiso", access.Reason)

	code, response = suite.do(http.MethodGet, "/v1/verify/"+confirmed.ReceiptCode, "", nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var verified struct {
		Receipt models.Receipt `json:"receipt"`
	}
	require.NoError(suite.T(), json.Unmarshal(response.Data, &verified))
	assert.True(suite.T(), verified.Receipt.Valid)
	assert.Equal(suite.T(), buyer.ID, verified.Receipt.Buyer)
	assert.Equal(suite.T(), "110", verified.Receipt.Paid.String())
}

func (suite *APITestSuite) TestOwnerCannotBuy() {
	owner := suite.register("selfbuyer")
	suite.fund(owner.ID, 1000)
	listingID := suite.publish(owner, "100", nil)

	code, response := suite.do(http.MethodPost, "/v1/listings/"+listingID.String()+"/intents", owner.Token, map[string]interface{}{
		"public_key": "pk",
		"payment":    map[string]interface{}{"amount": "110"},
	})
	assert.Equal(suite.T(), http.StatusForbidden, code)
	assert.Equal(suite.T(), string(services.KindCallerIsOwner), response.Error.Code)
	assert.Equal(suite.T(), "1000", suite.balance(owner.ID))
}

func (suite *APITestSuite) TestUnderpaidIntent() {
	owner := suite.register("artist")
	buyer := suite.register("cheapskate")
	suite.fund(buyer.ID, 1000)
	listingID := suite.publish(owner, "100", nil)

	code, response := suite.do(http.MethodPost, "/v1/listings/"+listingID.String()+"/intents", buyer.Token, map[string]interface{}{
		"public_key": "pk",
		"payment":    map[string]interface{}{"amount": "109"},
	})
	assert.Equal(suite.T(), http.StatusPaymentRequired, code)
	assert.Equal(suite.T(), string(services.KindInsufficientBalance), response.Error.Code)
	assert.Equal(suite.T(), "1000", suite.balance(buyer.ID))

	code, response = suite.do(http.MethodGet, "/v1/listings/"+listingID.String()+"/buyers/"+buyer.ID.String(), "", nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var onList struct {
		OnList bool `json:"on_list"`
	}
	require.NoError(suite.T(), json.Unmarshal(response.Data, &onList))
	assert.False(suite.T(), onList.OnList)
}

func (suite *APITestSuite) TestConfirmWithoutIntent() {
	owner := suite.register("lonely")
	stranger := suite.register("stranger")
	listingID := suite.publish(owner, "100", nil)

	code, response := suite.do(http.MethodPost, "/v1/listings/"+listingID.String()+"/intents/"+stranger.ID.String()+"/confirm", owner.Token, map[string]interface{}{
		"encrypted_key": "k",
		"location":      "loc",
	})
	assert.Equal(suite.T(), http.StatusNotFound, code)
	assert.Equal(suite.T(), string(services.KindNotOnPossibleBuyersList), response.Error.Code)
}

func (suite *APITestSuite) TestLedgerEndpoints() {
	alice := suite.register("alice")
	bob := suite.register("bob")

	code, _ := suite.do(http.MethodGet, "/v1/ledger/supply", "", nil)
	assert.Equal(suite.T(), http.StatusNotFound, code)

	suite.fund(alice.ID, 500)

	code, response := suite.do(http.MethodPost, "/v1/ledger/transfer", alice.Token, map[string]interface{}{
		"to":     bob.ID.String(),
		"amount": "200",
	})
	require.Equal(suite.T(), http.StatusOK, code, string(response.Data))

	code, response = suite.do(http.MethodPost, "/v1/ledger/transfer", bob.Token, map[string]interface{}{
		"to":     alice.ID.String(),
		"amount": "201",
	})
	assert.Equal(suite.T(), http.StatusPaymentRequired, code)
	assert.Equal(suite.T(), string(services.KindInsufficientBalance), response.Error.Code)

	code, response = suite.do(http.MethodGet, "/v1/ledger/balances/"+bob.ID.String(), "", nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var balance struct {
		Balance models.Amount `json:"balance"`
	}
	require.NoError(suite.T(), json.Unmarshal(response.Data, &balance))
	assert.Equal(suite.T(), "200", balance.Balance.String())
}

func (suite *APITestSuite) TestReportEndpointClosedWithoutToken() {
	code, response := suite.do(http.MethodPost, "/v1/reports", "", map[string]interface{}{
		"selector": services.ReportSelector,
		"buyer":    uuid.New().String(),
		"value":    "10",
	}, "X-Caller-Listing", uuid.New().String())
	assert.Equal(suite.T(), http.StatusForbidden, code)
	assert.False(suite.T(), response.Success)
}

func (suite *APITestSuite) TestReportEndpoint() {
	cfg := testConfig()
	cfg.Report.Token = "report-token"
	st := memory.New()
	svc, err := router.NewServices(cfg, st, quietLogger())
	require.NoError(suite.T(), err)
	suite.services = svc
	suite.router = router.Setup(cfg, st, svc, quietLogger())

	owner := suite.register("reported")
	listingID := suite.publish(owner, "100", nil)
	buyer := uuid.New()

	code, response := suite.do(http.MethodPost, "/v1/reports", "report-token", map[string]interface{}{
		"selector": services.ReportSelector,
		"buyer":    buyer.String(),
		"value":    "10",
	}, "X-Caller-Listing", listingID.String())
	require.Equal(suite.T(), http.StatusCreated, code, string(response.Data))
	var receipt services.ReportReceipt
	require.NoError(suite.T(), json.Unmarshal(response.Data, &receipt))
	assert.Equal(suite.T(), "Night Drive", receipt.ContentName)
	assert.Equal(suite.T(), "10", receipt.Amount.String())

	code, response = suite.do(http.MethodPost, "/v1/reports", "report-token", map[string]interface{}{
		"selector": "deadbeef",
		"buyer":    buyer.String(),
		"value":    "10",
	}, "X-Caller-Listing", listingID.String())
	assert.Equal(suite.T(), http.StatusBadRequest, code)
	assert.False(suite.T(), response.Success)

	code, _ = suite.do(http.MethodPost, "/v1/reports", "report-token", map[string]interface{}{
		"selector": services.ReportSelector,
		"buyer":    buyer.String(),
	})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
}
