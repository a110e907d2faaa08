// Command ice-ping runs two ICE agents in one process, negotiates a
// candidate pair between them and exchanges a few datagrams over the
// resulting connection. It exists to exercise the library end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/olegokunevych/ex-ice"
	"github.com/olegokunevych/ex-ice/log"
)

type config struct {
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Ice struct {
		Stuns   []string `mapstructure:"stuns"`
		Ta      int      `mapstructure:"ta_ms"`
		Rounds  int      `mapstructure:"rounds"`
		Timeout int      `mapstructure:"timeout_s"`
	} `mapstructure:"ice"`
}

func loadConfig(path string) (*config, error) {
	c := &config{}
	c.Log.Level = "info"
	c.Ice.Rounds = 3
	c.Ice.Timeout = 30

	if path == "" {
		return c, nil
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("toml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config file %s read failed: %w", path, err)
	}
	if err := viper.GetViper().Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config file %s load failed: %w", path, err)
	}
	return c, nil
}

func newAgent(role ice.Role, cfg *config) (*ice.Agent, error) {
	var urls []*ice.URL
	for _, raw := range cfg.Ice.Stuns {
		u, err := ice.ParseURL(raw)
		if err != nil {
			log.Warnf("dropping unparseable STUN url %q: %v", raw, err)
			continue
		}
		urls = append(urls, u)
	}

	return ice.NewAgent(&ice.AgentConfig{
		Role:          role,
		Urls:          urls,
		Ta:            time.Duration(cfg.Ice.Ta) * time.Millisecond,
		LoggerFactory: log.NewPionLoggerFactory(),
		IPFilter: func(ip net.IP) bool {
			// Keep the demo on one machine.
			return ip.To4() != nil
		},
	})
}

// wire forwards credentials and trickled candidates from one agent to the
// other, standing in for the application's signalling channel.
func wire(from, to *ice.Agent) error {
	ufrag, pwd, err := from.GetLocalUserCredentials()
	if err != nil {
		return err
	}
	if err := to.SetRemoteCredentials(ufrag, pwd); err != nil {
		return err
	}

	return from.OnCandidate(func(c ice.Candidate) {
		if c == nil {
			if err := to.EndOfCandidates(); err != nil {
				log.Warnf("end of candidates: %v", err)
			}
			return
		}
		log.Infof("candidate: %s", c.Marshal())
		remote, err := ice.UnmarshalCandidate(c.Marshal())
		if err != nil {
			log.Warnf("unmarshal candidate: %v", err)
			return
		}
		if err := to.AddRemoteCandidate(remote); err != nil {
			log.Warnf("add remote candidate: %v", err)
		}
	})
}

func run() error {
	cfgPath := flag.String("c", "", "config file (toml)")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	log.Init(cfg.Log.Level)

	controlling, err := newAgent(ice.RoleControlling, cfg)
	if err != nil {
		return err
	}
	controlled, err := newAgent(ice.RoleControlled, cfg)
	if err != nil {
		return err
	}

	if err := wire(controlling, controlled); err != nil {
		return err
	}
	if err := wire(controlled, controlling); err != nil {
		return err
	}

	if err := controlling.Run(); err != nil {
		return err
	}
	if err := controlled.Run(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Ice.Timeout)*time.Second)
	defer cancel()

	type connResult struct {
		conn *ice.Conn
		err  error
	}
	results := make(chan connResult, 2)
	go func() {
		c, err := controlling.Connect(ctx)
		results <- connResult{c, err}
	}()
	go func() {
		c, err := controlled.Connect(ctx)
		results <- connResult{c, err}
	}()

	r1, r2 := <-results, <-results
	if r1.err != nil {
		return r1.err
	}
	if r2.err != nil {
		return r2.err
	}
	a, b := r1.conn, r2.conn
	log.Infof("connected: %s <-> %s", a.LocalAddr(), a.RemoteAddr())

	buf := make([]byte, 1500)
	for i := 0; i < cfg.Ice.Rounds; i++ {
		ping := fmt.Sprintf("ping %d", i)
		if _, err := a.Write([]byte(ping)); err != nil {
			return err
		}
		n, err := b.Read(buf)
		if err != nil {
			return err
		}
		log.Infof("received %q", buf[:n])

		if _, err := b.Write([]byte("pong")); err != nil {
			return err
		}
		if _, err := a.Read(buf); err != nil {
			return err
		}
	}

	if err := a.Close(); err != nil {
		return err
	}
	return b.Close()
}

func main() {
	if err := run(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
