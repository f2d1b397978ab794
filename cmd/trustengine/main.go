// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	libp2p "github.com/libp2p/go-libp2p"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"

	"github.com/meshcore/trustengine/internal/config"
	"github.com/meshcore/trustengine/internal/cryptoprovider"
	"github.com/meshcore/trustengine/internal/engine"
	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/logging"
	"github.com/meshcore/trustengine/internal/peerrating"
	"github.com/meshcore/trustengine/internal/store"
	"github.com/meshcore/trustengine/internal/transport"
)

var log = logging.Logger("main")

var (
	showHelp   = flag.Bool("h", false, "Show help")
	showVer    = flag.Bool("version", false, "Show version")
	configPath = flag.String("config", "config.json", "Path to config file")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("trustengine v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "serve":
		runServe()
	case "whoami":
		runWhoami()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("trustengine - managed-group and key-reset protocol core")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  trustengine [-config path] serve     Start listening and dispatching")
	fmt.Println("  trustengine [-config path] whoami    Print this node's own identity")
	fmt.Println()
	flag.PrintDefaults()
}

// openSession loads config, opens the Store, builds the Crypto Provider
// and libp2p host, and wires it all into an engine.Session — the shared
// setup path for every subcommand.
func openSession(ctx context.Context) (*engine.Session, identity.Identity, func(), error) {
	cfg, created, err := config.Ensure(*configPath, func() string { return uuid.NewString() })
	if err != nil {
		return nil, identity.Identity{}, nil, fmt.Errorf("config: %w", err)
	}
	if created {
		log.Infof("wrote default config to %s", *configPath)
	}
	logging.SetAllLevels(cfg.Log.Level)

	st, err := openStore(cfg.Store.Path)
	if err != nil {
		return nil, identity.Identity{}, nil, fmt.Errorf("store: %w", err)
	}

	crypto := cryptoprovider.New()
	own, err := ensureOwnIdentity(ctx, st, crypto, cfg.Identity.UserID)
	if err != nil {
		return nil, identity.Identity{}, nil, fmt.Errorf("own identity: %w", err)
	}

	priv, err := loadOrCreateLibp2pKey(cfg.Store.Path + ".p2p.key")
	if err != nil {
		return nil, identity.Identity{}, nil, fmt.Errorf("libp2p key: %w", err)
	}
	host, err := libp2p.New(libp2p.Identity(priv), libp2p.ListenAddrStrings(cfg.Listen.Address))
	if err != nil {
		return nil, identity.Identity{}, nil, fmt.Errorf("libp2p host: %w", err)
	}

	addrBook := transport.NewAddressBook()
	lt := transport.NewLibP2PTransport(host, addrBook)

	session := engine.NewSession(st, crypto, peerrating.New(), nil)
	session.AttachLibP2P(lt)

	log.Infof("node %s listening as %s on %v", own.UserID, host.ID(), host.Addrs())

	cleanup := func() { _ = host.Close() }
	return session, own, cleanup, nil
}

func openStore(path string) (store.Store, error) {
	if path == ":memory:" {
		return store.NewMemStore(), nil
	}
	return store.Open(path)
}

// ensureOwnIdentity fetches or creates the local own identity row,
// generating a fresh Crypto Provider key on first run.
func ensureOwnIdentity(ctx context.Context, st store.Store, crypto *cryptoprovider.Provider, userID string) (identity.Identity, error) {
	if existing, err := st.GetIdentityByUserID(ctx, userID); err == nil {
		return existing, nil
	}

	key, err := crypto.GenerateKeyPair()
	if err != nil {
		return identity.Identity{}, fmt.Errorf("generate key: %w", err)
	}
	own := identity.Identity{
		UserID:         userID,
		Address:        userID,
		KeyFingerprint: key.Fingerprint,
		Flags:          identity.FlagOwn,
		CommType:       identity.CommPEP,
		Confirmed:      true,
	}
	if err := st.SetIdentity(ctx, own); err != nil {
		return identity.Identity{}, fmt.Errorf("persist own identity: %w", err)
	}
	if err := st.SetDefaultKey(ctx, own.UserID, own.Address, key.Fingerprint); err != nil {
		return identity.Identity{}, fmt.Errorf("set own default key: %w", err)
	}
	log.Infof("created own identity %s (key %s)", own.UserID, key.Fingerprint)
	return own, nil
}

// loadOrCreateLibp2pKey loads a persistent libp2p host key from disk, or
// generates and saves a new Ed25519 key on first run — the same
// "generate then persist" idiom applied to the transport layer's host
// identity rather than an engine-level key.
func loadOrCreateLibp2pKey(path string) (p2pcrypto.PrivKey, error) {
	if data, err := os.ReadFile(path); err == nil {
		if priv, err := p2pcrypto.UnmarshalPrivateKey(data); err == nil {
			return priv, nil
		}
		log.Warnf("corrupt libp2p key at %s, regenerating", path)
	}

	priv, _, err := p2pcrypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, err
	}
	raw, err := p2pcrypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, fmt.Errorf("save libp2p key: %w", err)
	}
	return priv, nil
}

func runServe() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, own, cleanup, err := openSession(ctx)
	if err != nil {
		log.Errorf("serve: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	log.Infof("serving as %s — press ctrl-c to stop", own.UserID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Infof("shutting down")
}

func runWhoami() {
	ctx := context.Background()
	_, own, cleanup, err := openSession(ctx)
	if err != nil {
		log.Errorf("whoami: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	fmt.Printf("user_id:  %s\n", own.UserID)
	fmt.Printf("address:  %s\n", own.Address)
	fmt.Printf("key:      %s\n", own.KeyFingerprint)
}
