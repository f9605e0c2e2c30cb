package geo

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCityReader struct {
	city *geoip2.City
	err  error
}

func (f fakeCityReader) City(net.IP) (*geoip2.City, error) {
	return f.city, f.err
}

type countingLocator struct {
	loc   Location
	err   error
	calls int
}

func (c *countingLocator) Locate(context.Context, string) (Location, error) {
	c.calls++
	return c.loc, c.err
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
		wantErr bool
	}{
		{name: "first forwarded entry", headers: map[string]string{"X-Forwarded-For": "8.8.8.8, 10.0.0.1"}, want: "8.8.8.8"},
		{name: "loopback forwarded falls back to real ip", headers: map[string]string{"X-Forwarded-For": "127.0.0.1", "X-Real-Ip": "1.1.1.1"}, want: "1.1.1.1"},
		{name: "private only", headers: map[string]string{"X-Forwarded-For": "192.168.1.20", "X-Real-Ip": "10.1.2.3"}, wantErr: true},
		{name: "ipv6 loopback", headers: map[string]string{"X-Real-Ip": "::1"}, wantErr: true},
		{name: "garbage", headers: map[string]string{"X-Forwarded-For": "not-an-ip"}, wantErr: true},
		{name: "no headers", headers: map[string]string{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			got, err := ClientIP(h)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoPublicIP)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaxMindLocator_Locate(t *testing.T) {
	city := &geoip2.City{}
	city.Location.Latitude = 6.9271
	city.Location.Longitude = 79.8612
	city.Country.IsoCode = "LK"
	city.City.Names = map[string]string{"en": "Colombo"}

	loc, err := NewMaxMindLocator(fakeCityReader{city: city}).Locate(context.Background(), "112.134.0.1")

	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 6.9271, Longitude: 79.8612, Country: "LK", City: "Colombo"}, loc)
}

func TestMaxMindLocator_MissingCoordinates(t *testing.T) {
	_, err := NewMaxMindLocator(fakeCityReader{city: &geoip2.City{}}).Locate(context.Background(), "112.134.0.1")
	assert.ErrorIs(t, err, ErrLocationMissing)

	_, err = NewMaxMindLocator(fakeCityReader{err: errors.New("boom")}).Locate(context.Background(), "112.134.0.1")
	assert.Error(t, err)
}

func TestCachedLocator_MissThenStore(t *testing.T) {
	// Arrange
	client, mock := redismock.NewClientMock()
	next := &countingLocator{loc: Location{Latitude: 1, Longitude: 2, Country: "LK", City: "Kandy"}}
	payload, _ := json.Marshal(next.loc)
	mock.ExpectGet("geo:8.8.8.8").RedisNil()
	mock.ExpectSet("geo:8.8.8.8", payload, time.Hour).SetVal("OK")

	// Act
	loc, err := NewCachedLocator(next, client, time.Hour, zap.NewNop()).Locate(context.Background(), "8.8.8.8")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, next.loc, loc)
	assert.Equal(t, 1, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedLocator_Hit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cached := Location{Latitude: 7.29, Longitude: 80.63, Country: "LK", City: "Kandy"}
	payload, _ := json.Marshal(cached)
	mock.ExpectGet("geo:8.8.4.4").SetVal(string(payload))
	next := &countingLocator{}

	loc, err := NewCachedLocator(next, client, time.Hour, zap.NewNop()).Locate(context.Background(), "8.8.4.4")

	require.NoError(t, err)
	assert.Equal(t, cached, loc)
	assert.Zero(t, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedLocator_RedisDownFallsThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	next := &countingLocator{loc: Location{Latitude: 3, Longitude: 4}}
	payload, _ := json.Marshal(next.loc)
	mock.ExpectGet("geo:1.1.1.1").SetErr(errors.New("connection refused"))
	mock.ExpectSet("geo:1.1.1.1", payload, 24*time.Hour).SetErr(errors.New("connection refused"))

	loc, err := NewCachedLocator(next, client, 0, zap.NewNop()).Locate(context.Background(), "1.1.1.1")

	require.NoError(t, err)
	assert.Equal(t, next.loc, loc)
	assert.Equal(t, 1, next.calls)
}

func TestNewCachedLocator_NilClientReturnsNext(t *testing.T) {
	next := &countingLocator{}
	assert.Same(t, next, NewCachedLocator(next, nil, time.Hour, zap.NewNop()))
}
