package acceptance_test

import (
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CLI", func() {
	Describe("burl --help", func() {
		It("exits with code 0", func() {
			cmd := exec.Command(binaryPath, "--help")
			err := cmd.Run()
			Expect(err).NotTo(HaveOccurred())
		})

		It("shows the tool description", func() {
			cmd := exec.Command(binaryPath, "--help")
			output, err := cmd.CombinedOutput()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("claim -> submit -> validate -> approve"))
		})

		It("lists the transition subcommands", func() {
			cmd := exec.Command(binaryPath, "--help")
			output, err := cmd.CombinedOutput()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("Available Commands"))
			for _, name := range []string{"claim", "submit", "validate", "approve", "reject", "clean", "status", "init", "doctor"} {
				Expect(string(output)).To(ContainSubstring(name))
			}
		})
	})

	Describe("burl version", func() {
		It("exits with code 0", func() {
			cmd := exec.Command(binaryPath, "version")
			err := cmd.Run()
			Expect(err).NotTo(HaveOccurred())
		})

		It("prints a version string", func() {
			cmd := exec.Command(binaryPath, "version")
			output, err := cmd.CombinedOutput()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(MatchRegexp(`burl \S+`))
		})
	})

	Describe("an unknown command", func() {
		It("exits non-zero without printing usage", func() {
			cmd := exec.Command(binaryPath, "not-a-real-command")
			output, err := cmd.CombinedOutput()
			Expect(err).To(HaveOccurred())
			Expect(string(output)).NotTo(ContainSubstring("Usage:"))
		})
	})
})
