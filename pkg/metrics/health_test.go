package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func resetRegistry() {
	registry = &componentRegistry{components: make(map[string]ComponentHealth)}
	ComponentUp.Reset()
}

func TestRegisterComponentPublishesGauge(t *testing.T) {
	resetRegistry()

	RegisterComponent("commit_log", true, "")

	if got := testutil.ToFloat64(ComponentUp.WithLabelValues("commit_log")); got != 1.0 {
		t.Errorf("stormdb_component_up{commit_log} = %v, want 1", got)
	}

	comp, ok := Components()["commit_log"]
	if !ok {
		t.Fatal("commit_log not in registry after RegisterComponent")
	}
	if !comp.Healthy {
		t.Error("component should be healthy")
	}
	if time.Since(comp.Updated) > time.Second {
		t.Error("Updated timestamp is not recent")
	}
}

func TestUpdateComponentFlipsGaugeDown(t *testing.T) {
	resetRegistry()

	RegisterComponent("relational", true, "")
	UpdateComponent("relational", false, "write guard poisoned")

	if got := testutil.ToFloat64(ComponentUp.WithLabelValues("relational")); got != 0.0 {
		t.Errorf("stormdb_component_up{relational} = %v, want 0", got)
	}

	comp := Components()["relational"]
	if comp.Healthy {
		t.Error("component should be unhealthy after UpdateComponent(false)")
	}
	if comp.Message != "write guard poisoned" {
		t.Errorf("unexpected message: %q", comp.Message)
	}
}

func TestComponentsReturnsACopy(t *testing.T) {
	resetRegistry()

	RegisterComponent("datastore", true, "")

	snapshot := Components()
	snapshot["datastore"] = ComponentHealth{Healthy: false, Message: "mutated copy"}

	if comp := Components()["datastore"]; !comp.Healthy {
		t.Error("mutating the returned map must not affect the registry")
	}
}
