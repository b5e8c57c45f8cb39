// Package config loads harvester settings from defaults, a YAML file,
// .env files, IMGHARVEST_* environment variables and command line flags.
//
// Precedence, highest first:
//
//	flags > environment (including .env) > config file > defaults
//
// Typical use:
//
//	cfg, err := config.Load("", map[string]interface{}{
//	    "target-count": 100,
//	    "output":       "./images",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Durations in YAML accept Go duration strings such as "500ms" or "10s".
package config
