package orchestration_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/lynkia/deployer/internal/config"
	"github.com/lynkia/deployer/internal/metrics"
	"github.com/lynkia/deployer/internal/orchestration"
	"github.com/lynkia/deployer/internal/pipeline"
	"github.com/lynkia/deployer/internal/platform/s3"
	"github.com/lynkia/deployer/internal/report"
	"github.com/lynkia/deployer/internal/runner"
	testutil "github.com/lynkia/deployer/internal/testing"
	"github.com/lynkia/deployer/internal/workspace"
)

const applyOutput = `aws_lambda_function.agent: Creating...
aws_lambda_function.agent: Creation complete after 12s

Apply complete! Resources: 5 added, 0 changed, 0 destroyed.

Outputs:

function_name = "whatsapp-agent"
webhook_url = "https://abc123.execute-api.eu-west-3.amazonaws.com/webhook"
`

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) ObjectExists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+key]
	return ok, nil
}

func (m *memoryStore) PutObject(_ context.Context, bucket, key string, body io.ReadSeeker, _ int64, _ string, _ map[string]string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	return nil
}

var _ = Describe("Deployer", func() {
	var (
		ws     *testutil.Workspace
		r      *testutil.MockRunner
		out    *bytes.Buffer
		cfg    config.Config
		store  *memoryStore
		rec    *metrics.Recorder
		newDep func() *orchestration.Deployer
	)

	crossPlatform := func() *mock.Call {
		return r.OnCommand("pip", "install", "--platform")
	}
	hostNative := func() *mock.Call {
		return r.On("Run", mock.Anything, testutil.NotCommand("pip", "--platform"))
	}
	terraformCalls := func() int {
		return r.CountCommands("terraform")
	}

	BeforeEach(func() {
		ws = testutil.NewWorkspace(GinkgoT())
		ws.Write("backend/requirements.txt", "fastapi==0.110.0\nmangum==0.17.0\npydantic==2.6.4\n")

		r = &testutil.MockRunner{}
		out = &bytes.Buffer{}
		cfg = testutil.NewConfigBuilder().Build()
		store = &memoryStore{objects: map[string][]byte{}}
		rec = metrics.NewRecorder("test")

		newDep = func() *orchestration.Deployer {
			return orchestration.New(orchestration.Settings{
				Workspace: workspace.Options{Explicit: ws.Root},
				Config:    &cfg,
				Getenv:    func(string) string { return "" },
			}, orchestration.Options{
				Runner:  r,
				Console: report.NewConsole(out, false),
				Metrics: rec,
				NewStore: func(context.Context, config.Publish) (s3.ObjectStore, error) {
					return store, nil
				},
			})
		}
	})

	stageDeps := func() func(mock.Arguments) {
		return testutil.StagePackages(GinkgoT(), "fastapi", "0.110.0", "mangum", "0.17.0", "pydantic", "2.6.4")
	}
	terraformSucceeds := func() {
		r.OnCommand("terraform", "init").Return(testutil.Succeeded("Terraform has been successfully initialized!\n"))
		r.OnCommand("terraform", "apply").Return(testutil.Succeeded(applyOutput))
	}

	Context("scenario A: configuration present and dependencies resolvable", func() {
		BeforeEach(func() {
			ws.WithDeploymentConfig()
			crossPlatform().Run(stageDeps()).Return(testutil.Succeeded(""))
			terraformSucceeds()
		})

		It("builds the archive, provisions it and prints the checklist", func() {
			rep, err := newDep().Deploy(testutil.TestContext(GinkgoT()), orchestration.DeployOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(pipeline.ExitCode(err)).To(Equal(0))

			entries := testutil.ZipEntries(GinkgoT(), ws.Path("backend/lambda.zip"))
			Expect(entries).To(ContainElements(
				"fastapi/__init__.py", "mangum/__init__.py", "pydantic/__init__.py",
				"api/routes.py", "core/settings.py", "models/__init__.py",
				"services/whatsapp.py", "main.py", "handler.py",
			))
			for _, e := range entries {
				Expect(e).NotTo(HaveSuffix(".pyc"))
				Expect(e).NotTo(ContainSubstring("__pycache__"))
				Expect(e).NotTo(ContainSubstring(".dist-info"))
				Expect(e).NotTo(HavePrefix("tests/"))
			}

			Expect(ws.Read("terraform/lambda.zip")).To(Equal(ws.Read("backend/lambda.zip")))
			Expect(ws.Exists("backend/package")).To(BeFalse())

			Expect(r.CountCommands("pip")).To(Equal(1))
			Expect(r.CountCommands("terraform", "init", "-upgrade")).To(Equal(1))
			Expect(r.CountCommands("terraform", "apply", "-auto-approve")).To(Equal(1))
			for _, c := range r.Commands() {
				if c.Name == "terraform" {
					Expect(c.Dir).To(Equal(ws.Path("terraform")))
					Expect(c.Stream).To(BeTrue())
				}
			}

			Expect(rep.Install.Degraded).To(BeFalse())
			Expect(rep.Endpoint).To(Equal("https://abc123.execute-api.eu-west-3.amazonaws.com/webhook"))
			Expect(out.String()).To(ContainSubstring("Next steps"))
			Expect(out.String()).To(ContainSubstring("https://abc123.execute-api.eu-west-3.amazonaws.com/webhook"))
			Expect(out.String()).To(ContainSubstring("Done"))
		})

		It("records stage metrics", func() {
			_, err := newDep().Deploy(testutil.TestContext(GinkgoT()), orchestration.DeployOptions{})
			Expect(err).NotTo(HaveOccurred())

			families, err := rec.Registry().Gather()
			Expect(err).NotTo(HaveOccurred())
			Expect(families).NotTo(BeEmpty())
		})

		It("keeps staging when asked to", func() {
			cfg = testutil.NewConfigBuilder().WithKeepStaging().Build()
			_, err := newDep().Deploy(testutil.TestContext(GinkgoT()), orchestration.DeployOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ws.Exists("backend/package/fastapi/__init__.py")).To(BeTrue())
			Expect(out.String()).To(ContainSubstring("staging kept at"))
		})

		It("publishes the archive before provisioning", func() {
			cfg = testutil.NewConfigBuilder().WithPublish("artifacts", "").Build()
			rep, err := newDep().Deploy(testutil.TestContext(GinkgoT()), orchestration.DeployOptions{Publish: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(rep.Published).NotTo(BeNil())
			Expect(rep.Published.Key).To(HavePrefix("lambda/lambda-"))
			Expect(store.objects).To(HaveKeyWithValue("artifacts/"+rep.Published.Key, ws.Read("backend/lambda.zip")))
		})
	})

	Context("scenario B: deployment configuration absent", func() {
		BeforeEach(func() {
			crossPlatform().Run(stageDeps()).Return(testutil.Succeeded(""))
		})

		It("stops at the gate without calling terraform", func() {
			_, err := newDep().Deploy(testutil.TestContext(GinkgoT()), orchestration.DeployOptions{})
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, pipeline.ErrPrecondition)).To(BeTrue())
			Expect(pipeline.ExitCode(err)).To(Equal(pipeline.ExitPrecondition))

			var stageErr *pipeline.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal("gate"))

			Expect(terraformCalls()).To(BeZero())
			Expect(ws.Exists("backend/lambda.zip")).To(BeTrue())
			Expect(out.String()).To(ContainSubstring("cp terraform.tfvars.example terraform.tfvars"))
			Expect(out.String()).To(ContainSubstring("deployer init"))
			Expect(out.String()).NotTo(ContainSubstring("Next steps"))
		})
	})

	Context("scenario C: cross-platform install fails", func() {
		BeforeEach(func() {
			ws.WithDeploymentConfig()
			crossPlatform().Return(testutil.Failed("pip", 1,
				"ERROR: Could not find a version that satisfies the requirement pydantic-core==2.16.3"))
			terraformSucceeds()
		})

		It("falls back to a host-native install once and completes with a warning", func() {
			hostNative().Run(stageDeps()).Return(testutil.Succeeded(""))

			rep, err := newDep().Deploy(testutil.TestContext(GinkgoT()), orchestration.DeployOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(r.CountCommands("pip", "--platform")).To(Equal(1))
			Expect(r.CountCommands("pip")).To(Equal(2))
			Expect(rep.Install.Degraded).To(BeTrue())
			Expect(rep.Install.Strategy).To(Equal("host-native"))
			Expect(out.String()).To(ContainSubstring("cross-platform install failed"))
			Expect(out.String()).To(ContainSubstring("warning:"))
			Expect(terraformCalls()).To(Equal(2))
		})

		It("fails without an archive when the fallback fails too", func() {
			ws.Write("terraform/lambda.zip", "from an earlier deploy")
			hostNative().Return(testutil.Failed("pip", 1, "ERROR: No matching distribution found"))

			_, err := newDep().Deploy(testutil.TestContext(GinkgoT()), orchestration.DeployOptions{})
			Expect(errors.Is(err, pipeline.ErrDependencyResolution)).To(BeTrue())
			Expect(pipeline.ExitCode(err)).To(Equal(pipeline.ExitFailure))

			Expect(r.CountCommands("pip")).To(Equal(2))
			Expect(terraformCalls()).To(BeZero())
			Expect(ws.Exists("backend/lambda.zip")).To(BeFalse())
			Expect(ws.Exists("terraform/lambda.zip")).To(BeFalse())
		})
	})

	Context("scenario D: terraform apply fails", func() {
		BeforeEach(func() {
			ws.WithDeploymentConfig()
			crossPlatform().Run(stageDeps()).Return(testutil.Succeeded(""))
			r.OnCommand("terraform", "init").Return(testutil.Succeeded(""))
			r.OnCommand("terraform", "apply").Return(testutil.Failed("terraform", 1,
				"Error: creating Lambda Function: AccessDeniedException"))
		})

		It("reports the failure and leaves the archive in place", func() {
			_, err := newDep().Deploy(testutil.TestContext(GinkgoT()), orchestration.DeployOptions{})
			Expect(errors.Is(err, pipeline.ErrProvisioning)).To(BeTrue())
			Expect(pipeline.ExitCode(err)).To(Equal(pipeline.ExitFailure))

			var exitErr *runner.ExitError
			Expect(errors.As(err, &exitErr)).To(BeTrue())
			Expect(exitErr.Result.ExitCode).To(Equal(1))

			Expect(ws.Exists("backend/lambda.zip")).To(BeTrue())
			Expect(ws.Exists("terraform/lambda.zip")).To(BeTrue())
			Expect(ws.Exists("backend/package")).To(BeFalse())
			Expect(out.String()).To(ContainSubstring("AccessDeniedException"))
			Expect(out.String()).To(ContainSubstring("Provisioning infrastructure failed"))
		})
	})

	Describe("Build", func() {
		BeforeEach(func() {
			crossPlatform().Run(stageDeps()).Return(testutil.Succeeded(""))
		})

		It("produces the same archive regardless of leftovers", func() {
			first, err := newDep().Build(testutil.TestContext(GinkgoT()))
			Expect(err).NotTo(HaveOccurred())

			ws.Write("backend/package/stale/__init__.py", "old = True\n")
			ws.Write("backend/lambda.zip", "not a zip")

			second, err := newDep().Build(testutil.TestContext(GinkgoT()))
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Artifact.Manifest.Digest).To(Equal(first.Artifact.Manifest.Digest))
			Expect(second.Artifact.Manifest.Names()).NotTo(ContainElement("stale/__init__.py"))
		})

		It("never touches the provisioning root", func() {
			_, err := newDep().Build(testutil.TestContext(GinkgoT()))
			Expect(err).NotTo(HaveOccurred())
			Expect(ws.Exists("terraform/lambda.zip")).To(BeFalse())
			Expect(terraformCalls()).To(BeZero())
		})

		It("leaves an exported archive in place", func() {
			ws.Write("terraform/lambda.zip", "from an earlier deploy")

			_, err := newDep().Build(testutil.TestContext(GinkgoT()))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(ws.Read("terraform/lambda.zip"))).To(Equal("from an earlier deploy"))
		})
	})

	Describe("Clean", func() {
		It("is idempotent", func() {
			ws.Write("backend/package/fastapi/__init__.py", "")
			ws.Write("backend/lambda.zip", "zip")
			ws.Write("terraform/lambda.zip", "zip")

			for range 2 {
				_, err := newDep().Clean(testutil.TestContext(GinkgoT()))
				Expect(err).NotTo(HaveOccurred())
				Expect(ws.Exists("backend/package")).To(BeFalse())
				Expect(ws.Exists("backend/lambda.zip")).To(BeFalse())
				Expect(ws.Exists("terraform/lambda.zip")).To(BeFalse())
			}
			Expect(ws.Exists("terraform/main.tf")).To(BeTrue())
			Expect(r.Commands()).To(BeEmpty())
		})
	})

	Describe("Publish", func() {
		BeforeEach(func() {
			cfg = testutil.NewConfigBuilder().WithPublish("artifacts", "").Build()
		})

		It("requires a previous build", func() {
			_, err := newDep().Publish(testutil.TestContext(GinkgoT()))
			Expect(errors.Is(err, pipeline.ErrPublish)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("run deployer build first"))
		})

		It("uploads a built archive once", func() {
			crossPlatform().Run(stageDeps()).Return(testutil.Succeeded(""))
			_, err := newDep().Build(testutil.TestContext(GinkgoT()))
			Expect(err).NotTo(HaveOccurred())

			first, err := newDep().Publish(testutil.TestContext(GinkgoT()))
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Published.Skipped).To(BeFalse())

			second, err := newDep().Publish(testutil.TestContext(GinkgoT()))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Published.Skipped).To(BeTrue())
			Expect(store.objects).To(HaveLen(1))
		})

		It("fails when no bucket is configured", func() {
			cfg = testutil.NewConfigBuilder().Build()
			ws.Write("backend/lambda.zip", "zip")
			_, err := newDep().Publish(testutil.TestContext(GinkgoT()))
			Expect(errors.Is(err, pipeline.ErrPublish)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("publish.bucket is not set"))
		})
	})

	Describe("workspace resolution", func() {
		It("classifies a missing workspace as an environment failure", func() {
			d := orchestration.New(orchestration.Settings{
				Workspace: workspace.Options{Explicit: ws.Path("does-not-exist")},
				Config:    &cfg,
			}, orchestration.Options{Runner: r, Console: report.NewConsole(out, false)})

			_, err := d.Deploy(testutil.TestContext(GinkgoT()), orchestration.DeployOptions{})
			Expect(errors.Is(err, pipeline.ErrEnvironment)).To(BeTrue())
			Expect(r.Commands()).To(BeEmpty())
		})
	})
})
