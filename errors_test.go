package linkauth

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{errors.New("plain"), KindUnknown},
		{ErrEmailTaken, KindConflict},
		{fmt.Errorf("%w: dial tcp", ErrStoreUnavailable), KindUnavailable},
		{errors.Join(ErrProviderUnavailable, errors.New("502")), KindUnavailable},
		{fmt.Errorf("wrap: %w", ErrInvalidOneTimeCode), KindAuthentication},
		{configError("x"), KindConfiguration},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestStoreErrMapping(t *testing.T) {
	if err := storeErr(ErrRecordNotFound, ErrUserNotFound); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := storeErr(ErrDuplicateEmail, nil); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if err := storeErr(errors.New("timeout"), ErrUserNotFound); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := storeErr(ErrRecordNotFound, nil); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("absence without a mapping is an outage, got %v", err)
	}
}

func TestRequestInfoFromContext(t *testing.T) {
	info := RequestInfoFromContext(context.Background())
	if info.DeviceInfo != "unknown" || info.IPAddress != "unknown" || info.Location != "unknown" {
		t.Fatalf("expected unknown defaults, got %+v", info)
	}

	ctx := WithUserAgent(context.Background(), "  curl/8.0 ")
	ctx = WithClientIP(ctx, "192.0.2.1")
	ctx = WithLocation(ctx, "Berlin, DE")
	info = RequestInfoFromContext(ctx)
	if info.DeviceInfo != "curl/8.0" || info.IPAddress != "192.0.2.1" || info.Location != "Berlin, DE" {
		t.Fatalf("unexpected request info %+v", info)
	}
}

func TestAuthProviderText(t *testing.T) {
	for _, name := range []string{"local", "Google", " GITHUB "} {
		p, err := ParseAuthProvider(name)
		if err != nil {
			t.Fatalf("ParseAuthProvider(%q): %v", name, err)
		}
		b, _ := p.MarshalText()
		var back AuthProvider
		if err := back.UnmarshalText(b); err != nil || back != p {
			t.Fatalf("text round trip of %q failed: %v", name, err)
		}
	}
	if _, err := ParseAuthProvider("facebook"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}
