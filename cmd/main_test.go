package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/gigledger/internal/adapters/ledger/ledgertest"
	"github.com/okian/gigledger/internal/config"
	"github.com/okian/gigledger/pkg/logger"
)

func TestBuild(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.MarketplaceAddress = ledgertest.DefaultAddresses.Marketplace.Hex()
		cfg.EscrowAddress = ledgertest.DefaultAddresses.Escrow.Hex()
		cfg.ReputationAddress = ledgertest.DefaultAddresses.Reputation.Hex()

		app, err := build(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer app.close()

		convey.Convey("When the health endpoint is requested", func() {
			w := httptest.NewRecorder()
			app.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			convey.Convey("Then it is served", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When a write arrives before any ledger session", func() {
			w := httptest.NewRecorder()
			body := `{"title":"Logo","budget":"1","deadline":"2027-01-01T00:00:00Z"}`
			app.mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body)))

			convey.Convey("Then it is reported as not ready", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
				convey.So(app.svc.Ready(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a session is supplied later", func() {
			chain := ledgertest.New()
			convey.So(app.svc.Initialize(ctx, chain), convey.ShouldBeNil)

			w := httptest.NewRecorder()
			body := `{"title":"Logo","budget":"1","deadline":"2027-01-01T00:00:00Z"}`
			app.mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body)))

			convey.Convey("Then writes go through", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			})
		})

		convey.Convey("When the service lifecycle is exercised", func() {
			convey.So(app.svc.Start(ctx), convey.ShouldBeNil)

			convey.Convey("Then stats report it started", func() {
				convey.So(app.svc.GetStats()["started"], convey.ShouldEqual, true)
			})
		})
	})
}

func TestAddresses(t *testing.T) {
	convey.Convey("Given contract addresses from the environment", t, func() {
		_ = os.Setenv("GIGLEDGER_MARKETPLACE_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
		_ = os.Setenv("GIGLEDGER_ESCROW_ADDRESS", "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
		_ = os.Setenv("GIGLEDGER_REPUTATION_ADDRESS", "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
		defer func() {
			_ = os.Unsetenv("GIGLEDGER_MARKETPLACE_ADDRESS")
			_ = os.Unsetenv("GIGLEDGER_ESCROW_ADDRESS")
			_ = os.Unsetenv("GIGLEDGER_REPUTATION_ADDRESS")
		}()

		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the gateway addresses are parsed from them", func() {
			a := addresses(cfg)
			convey.So(a.Marketplace.Hex(), convey.ShouldEqual, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
			convey.So(a.Escrow.Hex(), convey.ShouldEqual, "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
			convey.So(a.Reputation.Hex(), convey.ShouldEqual, "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
		})
	})
}
