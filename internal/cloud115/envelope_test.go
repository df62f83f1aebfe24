package cloud115

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(tokenInvalidCodes []int) *Client {
	return &Client{tokenInvalidCodes: tokenInvalidCodes}
}

func TestClassifySuccess(t *testing.T) {
	c := newTestClient(nil)
	e, err := parseEnvelope([]byte(`{"state":true,"code":0,"data":{"foo":"bar"}}`))
	require.NoError(t, err)

	data, class := c.classify(200, e)
	require.Equal(t, classSuccess, class)
	require.JSONEq(t, `{"foo":"bar"}`, string(data))
}

func TestClassifyTokenInvalidByHTTPStatus(t *testing.T) {
	c := newTestClient(nil)
	e, err := parseEnvelope([]byte(`{"state":false,"code":1}`))
	require.NoError(t, err)

	_, class := c.classify(401, e)
	require.Equal(t, classTokenInvalid, class)
}

func TestClassifyTokenInvalidByCode(t *testing.T) {
	c := newTestClient([]int{40140125, 40140126})
	e, err := parseEnvelope([]byte(`{"state":false,"code":40140125}`))
	require.NoError(t, err)

	_, class := c.classify(200, e)
	require.Equal(t, classTokenInvalid, class)
}

func TestClassifyRateLimitedByHTTPStatus(t *testing.T) {
	c := newTestClient(nil)
	e, err := parseEnvelope([]byte(`{"state":false,"code":1}`))
	require.NoError(t, err)

	_, class := c.classify(429, e)
	require.Equal(t, classRateLimited, class)
}

func TestClassifyRateLimitedByQuotaCode(t *testing.T) {
	c := newTestClient(nil)
	e, err := parseEnvelope([]byte(`{"state":false,"code":406}`))
	require.NoError(t, err)

	_, class := c.classify(200, e)
	require.Equal(t, classRateLimited, class)
}

func TestClassifyUpstreamError(t *testing.T) {
	c := newTestClient(nil)
	e, err := parseEnvelope([]byte(`{"state":false,"code":999,"message":"weird failure"}`))
	require.NoError(t, err)

	_, class := c.classify(200, e)
	require.Equal(t, classUpstreamError, class)
}
