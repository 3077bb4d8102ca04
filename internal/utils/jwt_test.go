package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessToken_RoundTrip(t *testing.T) {
    tok, err := NewAccessToken("s3cret", "64f1c0ffee", "user", 5)
    require.NoError(t, err)

    c, err := ParseAccessToken("s3cret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, "64f1c0ffee", c.Subject)
    assert.Equal(t, "user", c.Role)
    assert.WithinDuration(t, tok.Exp, c.Exp, time.Second)
}

func TestParseAccessToken_Rejects(t *testing.T) {
    tok, err := NewAccessToken("s3cret", "u1", "", 5)
    require.NoError(t, err)
    _, err = ParseAccessToken("other", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)

    expired, err := NewAccessToken("s3cret", "u1", "", -1)
    require.NoError(t, err)
    _, err = ParseAccessToken("s3cret", expired.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)

    _, err = ParseAccessToken("s3cret", "not-a-jwt")
    assert.ErrorIs(t, err, ErrInvalidToken)

    noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "exp": time.Now().Add(time.Minute).Unix(),
    }).SignedString([]byte("s3cret"))
    require.NoError(t, err)
    _, err = ParseAccessToken("s3cret", noSub)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessToken_NumericAndAlternateSubject(t *testing.T) {
    num, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": 42,
        "exp": time.Now().Add(time.Minute).Unix(),
    }).SignedString([]byte("k"))
    require.NoError(t, err)
    c, err := ParseAccessToken("k", num)
    require.NoError(t, err)
    assert.Equal(t, "42", c.Subject)

    alt, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "id":  "abc",
        "exp": time.Now().Add(time.Minute).Unix(),
    }).SignedString([]byte("k"))
    require.NoError(t, err)
    c, err = ParseAccessToken("k", alt)
    require.NoError(t, err)
    assert.Equal(t, "abc", c.Subject)
}
