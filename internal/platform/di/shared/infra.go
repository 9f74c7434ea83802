// internal/platform/di/shared/infra.go
package shared

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-redis/redis/v8"
	"google.golang.org/api/option"

	localstore "storefront/internal/adapters/out/localstore"
	appcfg "storefront/internal/infra/config"
	firestoreinfra "storefront/internal/infra/firestore"
	"storefront/internal/infra/secrets"
)

// Infra is shared runtime infrastructure for DI.
// - owns external clients (Firestore/FirebaseAuth/SecretManager/Redis)
//
// IMPORTANT:
// Infra must NOT depend on routers, handlers, or usecases.
type Infra struct {
	// Config
	Config    *appcfg.Config
	ProjectID string

	// Clients (owned; Close-managed)
	Firestore     *firestore.Client
	FirebaseApp   *firebase.App
	FirebaseAuth  *firebaseauth.Client
	SecretManager *secretmanager.Client
	Redis         *redis.Client
}

// NewInfra initializes shared infra.
// Firestore is strict (return error).
// Firebase/Auth, SecretManager and Redis (unless LOCAL_STORE=redis) are best-effort (warn + continue).
func NewInfra(ctx context.Context, cfg *appcfg.Config) (*Infra, error) {
	if cfg == nil {
		return nil, errors.New("shared.infra: config is nil")
	}

	projectID := resolveProjectID(cfg)
	if projectID == "" {
		return nil, errors.New("shared.infra: projectID is empty (set FIRESTORE_PROJECT_ID or GOOGLE_CLOUD_PROJECT)")
	}

	inf := &Infra{
		Config:    cfg,
		ProjectID: projectID,
	}

	// Credentials file (optional; mainly for local dev)
	credFile := strings.TrimSpace(cfg.FirestoreCredentialsFile)
	if credFile == "" {
		credFile = strings.TrimSpace(cfg.GCPCreds) // GOOGLE_APPLICATION_CREDENTIALS
	}
	var clientOpts []option.ClientOption
	if credFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credFile))
		log.Printf("[shared.infra] Using credentials file for GCP clients: %s", redactPath(credFile))
	} else {
		log.Printf("[shared.infra] Using Application Default Credentials (no credentials file configured)")
	}

	// 1) Firestore (strict)
	{
		cw, err := firestoreinfra.NewClient(ctx, inf.ProjectID, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("shared.infra: %w", err)
		}
		inf.Firestore = cw.Client
		log.Printf("[shared.infra] Firestore connected project=%s", inf.ProjectID)
	}

	// 2) Optional: Secret Manager (Firebase credentials)
	fbOpts := clientOpts
	if secretID := strings.TrimSpace(cfg.FirebaseCredentialsSecret); secretID != "" {
		provider, sm, err := secrets.NewCredentialsProviderSM(ctx, inf.ProjectID)
		if err != nil {
			log.Printf("[shared.infra] WARN: secretmanager init failed: %v (falling back to default credentials)", err)
		} else {
			inf.SecretManager = sm
			opt, err := provider.ClientOption(ctx, secretID)
			if err != nil {
				log.Printf("[shared.infra] WARN: firebase credentials secret %q unavailable: %v", secretID, err)
			} else {
				fbOpts = []option.ClientOption{opt}
				log.Printf("[shared.infra] Firebase credentials loaded from secret %q", secretID)
			}
		}
	}

	// 3) Firebase App/Auth (best-effort)
	{
		fbCfg := &firebase.Config{ProjectID: cfg.GetFirebaseProjectID()}
		if fbCfg.ProjectID == "" {
			fbCfg.ProjectID = inf.ProjectID
		}
		fbApp, err := firebase.NewApp(ctx, fbCfg, fbOpts...)
		if err != nil {
			log.Printf("[shared.infra] WARN: firebase app init failed: %v", err)
		} else {
			inf.FirebaseApp = fbApp
			authClient, err := fbApp.Auth(ctx)
			if err != nil {
				log.Printf("[shared.infra] WARN: firebase auth init failed: %v (sign-in disabled)", err)
			} else {
				inf.FirebaseAuth = authClient
				log.Printf("[shared.infra] Firebase Auth initialized")
			}
		}
	}

	// 4) Redis (strict only when it backs the local store)
	if cfg.LocalStore == appcfg.LocalStoreRedis {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			_ = inf.Close()
			return nil, errors.New("shared.infra: LOCAL_STORE=redis but REDIS_ADDR is empty")
		}
		rc, err := localstore.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: redis client: %w", err)
		}
		if err := localstore.PingRedis(ctx, rc); err != nil {
			_ = rc.Close()
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: %w", err)
		}
		inf.Redis = rc
		log.Printf("[shared.infra] Redis connected")
	}

	return inf, nil
}

func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	if i.Firestore != nil {
		_ = i.Firestore.Close()
	}
	if i.SecretManager != nil {
		_ = i.SecretManager.Close()
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	return nil
}

func resolveProjectID(cfg *appcfg.Config) string {
	// Priority:
	// 1) cfg.FirestoreProjectID (resolved by config.Load)
	// 2) GOOGLE_CLOUD_PROJECT (often set in Cloud Run)
	// 3) FIREBASE_PROJECT_ID (fallback)
	if cfg != nil {
		if v := strings.TrimSpace(cfg.GetFirestoreProjectID()); v != "" {
			return v
		}
	}
	for _, k := range []string{"GOOGLE_CLOUD_PROJECT", "FIREBASE_PROJECT_ID"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func redactPath(p string) string {
	// Do not log full path
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	last := parts[len(parts)-1]
	if last == "" {
		return "***"
	}
	return "***" + "/" + last
}
