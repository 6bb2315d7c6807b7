// Package config loads the bar CLI configuration.
//
// The configuration is stored in bar.json. Every field is optional; missing
// fields take defaults, and a few can be overridden from the environment
// (BAR_BASE_URL, BAR_ROOM, BAR_NICKNAME, BAR_LOG_LEVEL, BAR_MAP).
//
// # Configuration File Structure
//
//	{
//	  "baseUrl": "http://localhost:8080",
//	  "room": "bar",
//	  "nickname": "nova",
//	  "avatar": { "skin": "default", "color": "cyan" },
//	  "reconnect": { "base": "500ms", "max": "5s", "maxAttempts": 10 },
//	  "heartbeatInterval": "15s",
//	  "map": {
//	    "source": "s3://maps/bar.json",
//	    "s3": { "region": "us-east-1", "endpoint": "http://localhost:9000", "usePathStyle": true }
//	  },
//	  "render": { "fps": 60, "maxAlpha": 0.9, "deadZone": 0.1 },
//	  "log": { "level": "info", "format": "text" },
//	  "debug": { "addr": "127.0.0.1:6061" }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.ApplyEnv(os.LookupEnv)
//	backoff, err := cfg.Backoff()
package config
