package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/cloud"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

const defaultAWSRegion = "us-west-2"

// Environment is the set of variables a single engine invocation runs with.
// It never touches the process environment.
type Environment struct {
	Provider cloud.Provider
	Vars     map[string]string
	// Files are temporary files referenced by Vars, removed by Release.
	Files []string
}

// Pairs renders Vars as KEY=VALUE entries in a stable order.
func (e *Environment) Pairs() []string {
	keys := make([]string, 0, len(e.Vars))
	for k := range e.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.Vars[k])
	}
	return out
}

// Release removes temporary files. Safe to call more than once.
func (e *Environment) Release() {
	if e == nil {
		return
	}
	for _, f := range e.Files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.L().Warn("remove materialized credential file failed", zap.String("path", f), zap.Error(err))
		}
	}
	e.Files = nil
}

// Manager turns stored bundles into provider-specific environments.
type Manager struct {
	store  Store
	tmpDir string
}

// NewManager returns a Manager writing temporary key files under tmpDir
// (the system temp dir when empty).
func NewManager(store Store, tmpDir string) *Manager {
	return &Manager{store: store, tmpDir: tmpDir}
}

func (m *Manager) Store() Store { return m.store }

// Configured reports, for every supported provider, whether a bundle exists.
func (m *Manager) Configured(ctx context.Context, ownerID uuid.UUID) (map[cloud.Provider]bool, error) {
	out := make(map[cloud.Provider]bool, len(cloud.All))
	for _, p := range cloud.All {
		ok, err := m.store.Has(ctx, ownerID, p)
		if err != nil {
			return nil, err
		}
		out[p] = ok
	}
	return out, nil
}

// Materialize maps the stored bundle for (owner, provider) onto the variables
// the provider plugin reads. Missing bundles fail with missing_credentials.
func (m *Manager) Materialize(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) (*Environment, error) {
	if _, err := cloud.Parse(p.String()); err != nil {
		return nil, err
	}
	b, err := m.store.Get(ctx, ownerID, p)
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.Newf(appErr.CodeMissingCredentials, "no %s credentials configured", p).WithMeta("provider", p.String())
		}
		return nil, err
	}

	env := &Environment{Provider: p, Vars: map[string]string{}}
	switch p {
	case cloud.AWS:
		var v AWSBundle
		if err := b.Decode(&v); err != nil {
			return nil, err
		}
		if v.Region == "" {
			v.Region = defaultAWSRegion
		}
		env.Vars["AWS_ACCESS_KEY_ID"] = v.AccessKeyID
		env.Vars["AWS_SECRET_ACCESS_KEY"] = v.SecretAccessKey
		env.Vars["AWS_REGION"] = v.Region

	case cloud.Azure:
		var v AzureBundle
		if err := b.Decode(&v); err != nil {
			return nil, err
		}
		for _, prefix := range []string{"AZURE_", "ARM_"} {
			env.Vars[prefix+"TENANT_ID"] = v.TenantID
			env.Vars[prefix+"CLIENT_ID"] = v.ClientID
			env.Vars[prefix+"CLIENT_SECRET"] = v.ClientSecret
			env.Vars[prefix+"SUBSCRIPTION_ID"] = v.SubscriptionID
		}

	case cloud.GCP:
		var v GCPBundle
		if err := b.Decode(&v); err != nil {
			return nil, err
		}
		key := []byte(v.Credentials)
		if v.Credentials == "" {
			if key, err = json.Marshal(b); err != nil {
				return nil, appErr.Wrap(err, appErr.CodeInternal, "encode gcp key failed")
			}
		}
		path, err := m.writeKeyFile(ownerID, key)
		if err != nil {
			return nil, err
		}
		env.Files = append(env.Files, path)
		env.Vars["GOOGLE_APPLICATION_CREDENTIALS"] = path
		if project := v.Project(); project != "" {
			env.Vars["GOOGLE_PROJECT"] = project
			env.Vars["GOOGLE_CLOUD_PROJECT"] = project
		}
	}

	logger.L().Debug("credentials materialized",
		zap.String("owner_id", ownerID.String()),
		zap.String("provider", p.String()),
		zap.Int("vars", len(env.Vars)),
	)
	return env, nil
}

func (m *Manager) writeKeyFile(ownerID uuid.UUID, key []byte) (string, error) {
	f, err := os.CreateTemp(m.tmpDir, "gcp-"+ownerID.String()+"-*.json")
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "create gcp key file failed")
	}
	name := f.Name()
	if err := f.Chmod(fileMode); err == nil {
		_, err = f.Write(key)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(name)
		return "", appErr.Wrap(err, appErr.CodeInternal, "write gcp key file failed")
	}
	return name, nil
}
