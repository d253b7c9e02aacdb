package config_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/okian/gigledger/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.FanoutLimit, convey.ShouldEqual, runtime.NumCPU()*4)
			convey.So(cfg.IdempotencyCacheSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.IdempotencyTTL(), convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.HasSession(), convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_HasSession(t *testing.T) {
	convey.Convey("Given a config with an rpc url", t, func() {
		cfg := config.New()
		cfg.RPCURL = "http://127.0.0.1:8545"

		convey.Convey("When no key is set", func() {
			convey.Convey("Then there is no session to dial", func() {
				convey.So(cfg.HasSession(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a key is set", func() {
			cfg.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

			convey.Convey("Then a session can be dialed", func() {
				convey.So(cfg.HasSession(), convey.ShouldBeTrue)
			})
		})
	})
}
