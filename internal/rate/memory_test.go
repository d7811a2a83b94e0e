package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterVentana(t *testing.T) {
	l := NewMemoryLimiter(3, time.Hour)
	ctx := context.Background()
	key := Key("acme", "10.0.0.1")

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, key)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("hit #%d denegado dentro del límite", i)
		}
	}

	res, err := l.Allow(ctx, key)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("el cuarto hit debía denegarse")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v, esperaba positivo", res.RetryAfter)
	}

	// Otra clave no comparte ventana.
	res2, _ := l.Allow(ctx, Key("acme", "10.0.0.2"))
	if !res2.Allowed {
		t.Fatal("otra IP no debe compartir el contador")
	}
}

func TestNopLimiter(t *testing.T) {
	var l NopLimiter
	for i := 0; i < 100; i++ {
		res, err := l.Allow(context.Background(), "x")
		if err != nil || !res.Allowed {
			t.Fatalf("NopLimiter debe permitir siempre: %v %v", res, err)
		}
	}
}
