// internal/platform/di/mall/container_local_adapters.go
package mall

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"

	mallhandler "storefront/internal/adapters/in/http/mall/handler"
	localstore "storefront/internal/adapters/out/localstore"
	cartdom "storefront/internal/domain/cart"
	appcfg "storefront/internal/infra/config"
)

// newLocalStoreFactory picks the device-local store backend from LOCAL_STORE.
func newLocalStoreFactory(cfg *appcfg.Config, rc *redis.Client) (mallhandler.LocalStoreFactory, error) {
	switch cfg.LocalStore {
	case appcfg.LocalStoreMemory, "":
		log.Printf("[mall.container] local store = memory (anonymous carts do not survive restarts)")
		return func(ctx context.Context, deviceID string) (cartdom.LocalStore, error) {
			return localstore.NewMemoryStore(), nil
		}, nil

	case appcfg.LocalStoreFile:
		dir := cfg.LocalStoreDir
		log.Printf("[mall.container] local store = file dir=%s", dir)
		return func(ctx context.Context, deviceID string) (cartdom.LocalStore, error) {
			return localstore.NewFileStore(dir, deviceID)
		}, nil

	case appcfg.LocalStoreRedis:
		if rc == nil {
			return nil, errors.New("mall.container: LOCAL_STORE=redis but redis client is nil")
		}
		log.Printf("[mall.container] local store = redis")
		return func(ctx context.Context, deviceID string) (cartdom.LocalStore, error) {
			return localstore.NewRedisStore(rc, deviceID)
		}, nil

	default:
		return nil, fmt.Errorf("mall.container: unknown LOCAL_STORE %q", cfg.LocalStore)
	}
}
