package indexer

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Fantasim/tokenidx/internal/config"
)

func TestTokenMetadata_Success(t *testing.T) {
	client, _ := newTestClient(t, 0, func(w http.ResponseWriter, req mockRequest) {
		if req.Method != MethodTokenMetadata {
			t.Errorf("method = %s, want %s", req.Method, MethodTokenMetadata)
		}
		writeResult(w, req.ID, `{"name":"Dai Stablecoin","symbol":"DAI","decimals":18,"logo":"https://static.alchemyapi.io/images/assets/4943.png"}`)
	})

	md, err := client.TokenMetadata(context.Background(), "0x6B175474E89094C44Da98b954EedeAC495271d0F")
	if err != nil {
		t.Fatalf("TokenMetadata() error = %v", err)
	}
	if md.Symbol != "DAI" || md.Name != "Dai Stablecoin" {
		t.Errorf("metadata = %+v", md)
	}
	if md.Decimals == nil || *md.Decimals != 18 {
		t.Errorf("decimals = %v, want 18", md.Decimals)
	}
	if md.Logo == "" {
		t.Error("expected logo URL")
	}
}

func TestTokenMetadata_NullFields(t *testing.T) {
	client, _ := newTestClient(t, 0, func(w http.ResponseWriter, req mockRequest) {
		writeResult(w, req.ID, `{"name":null,"symbol":null,"decimals":null,"logo":null}`)
	})

	md, err := client.TokenMetadata(context.Background(), "0x6B175474E89094C44Da98b954EedeAC495271d0F")
	if err != nil {
		t.Fatalf("TokenMetadata() error = %v", err)
	}
	if md.Symbol != "" || md.Decimals != nil || md.Logo != "" {
		t.Errorf("expected empty metadata, got %+v", md)
	}
}

func TestTokenMetadata_DecimalsOutOfRange(t *testing.T) {
	client, _ := newTestClient(t, 0, func(w http.ResponseWriter, req mockRequest) {
		writeResult(w, req.ID, `{"symbol":"BAD","decimals":300}`)
	})

	_, err := client.TokenMetadata(context.Background(), "0x6B175474E89094C44Da98b954EedeAC495271d0F")
	if !errors.Is(err, config.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}
