package config

import (
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/auth"
	"github.com/wesleyorama2/gabsload/internal/failure"
	"github.com/wesleyorama2/gabsload/internal/scenario"
)

// LoadCredentials reads test accounts keyed by actor kind:
//
//	customer:
//	  - {email: jane@example.com, password: secret}
//	vendor:
//	  - {email: pizza@restaurant.com, password: secret}
//
// Kinds left out fall back to the built-in accounts. An empty path returns
// the built-in pool.
func LoadCredentials(path string) (scenario.Pool, error) {
	if path == "" {
		return scenario.DefaultPool(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Configf(KeyCredentialsFile, "error reading %s: %v", path, err)
	}

	var raw map[string][]auth.Credentials
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, failure.Configf(KeyCredentialsFile, "error parsing %s: %v", path, err)
	}

	pool := make(scenario.Pool, len(raw))
	var errs *multierror.Error
	for name, accounts := range raw {
		kind, err := actor.Parse(name)
		if err != nil {
			errs = multierror.Append(errs, failure.Configf(KeyCredentialsFile+"."+name, "%v", err))
			continue
		}
		for i, c := range accounts {
			if c.Email == "" || c.Password == "" {
				errs = multierror.Append(errs, failure.Configf(KeyCredentialsFile+"."+name, "account %d needs email and password", i))
			}
		}
		pool[kind] = accounts
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return pool, nil
}
