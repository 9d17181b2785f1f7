package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v2"
)

func main() {
	// Variables from a .env file must be in the environment before flags are parsed.
	if err := loadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "batchsigner",
		Usage: "Sign a digest with many ECDSA signers and verify the resulting batch",
		Description: `The batchsigner CLI signs a 32-byte digest as an Ethereum personal message with 
every configured signer, in order, and prints the signatures as index-aligned v, r 
and s arrays. Signers can be raw private keys, go-ethereum keystore accounts, AWS KMS 
keys or keys stored in AWS Secrets Manager.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "sign",
				Usage: "Sign a digest with every configured signer",
				Flags: append(signerFlags(),
					&cli.StringFlag{
						Name:    "digest",
						Usage:   "32-byte digest to sign (0x-prefixed hex)",
						EnvVars: []string{"DIGEST"},
					},
					&cli.StringFlag{
						Name:    "message",
						Usage:   "Message whose keccak256 hash is signed, used when --digest is not set",
						EnvVars: []string{"MESSAGE"},
					},
					&cli.IntFlag{
						Name:    "concurrency",
						Usage:   "Number of signers asked in parallel (1 signs sequentially)",
						Value:   1,
						EnvVars: []string{"CONCURRENCY"},
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the batch JSON to this file instead of stdout",
						EnvVars: []string{"OUTPUT"},
					},
				),
				Before: validateSignFlags,
				Action: signAction,
			},
			{
				Name:  "verify",
				Usage: "Verify a batch produced by the sign command",
				Description: `Recover every signature of the batch locally and compare it with its signer. 
When --rpc-url, --chain-id and --contract are set, each signature is also checked 
by calling checkSignature on the contract.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "batch-file",
						Aliases:  []string{"f"},
						Usage:    "Path to the batch JSON",
						Required: true,
						EnvVars:  []string{"BATCH_FILE"},
					},
					&cli.StringFlag{
						Name:    "rpc-url",
						Usage:   "RPC URL of the chain hosting the verification contract",
						EnvVars: []string{"RPC_URL"},
					},
					&cli.Uint64Flag{
						Name:    "chain-id",
						Usage:   "Chain ID served by --rpc-url",
						EnvVars: []string{"CHAIN_ID"},
					},
					&cli.StringFlag{
						Name:    "contract",
						Usage:   "Address of a contract exposing checkSignature(address,bytes32,uint8,bytes32,bytes32)",
						EnvVars: []string{"VERIFICATION_CONTRACT"},
					},
				},
				Before: validateVerifyFlags,
				Action: verifyAction,
			},
		},
	}
}

// loadEnvFile loads path, or .env from the working directory when path is empty.
// A missing default .env file is not an error.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}
