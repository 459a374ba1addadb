package skills

import (
	"fmt"
	"math/rand"
)

// Git simulates day-to-day repository work: the occasional new repo,
// mostly commit loops, some idle inspection.
type Git struct {
	username string
	reposDir string
	rng      *rand.Rand
}

// NewGit builds the git skill for a persona.
func NewGit(username, homeDir string, rng *rand.Rand) Skill {
	return &Git{username: username, reposDir: homeDir + "/repos", rng: rng}
}

// GenerateActivity returns one git session's worth of commands.
func (g *Git) GenerateActivity() []string {
	repos := []string{"backend-api", "frontend-app", "core-utils"}
	repoPath := fmt.Sprintf("%s/%s", g.reposDir, repos[g.rng.Intn(len(repos))])

	switch roll := g.rng.Float64(); {
	case roll < 0.1:
		return g.initRepo(fmt.Sprintf("%s/experiment-%d", g.reposDir, 100+g.rng.Intn(900)))
	case roll < 0.6:
		return g.commitLoop(repoPath)
	default:
		return g.inspection(repoPath)
	}
}

func (g *Git) initRepo(path string) []string {
	return []string{
		fmt.Sprintf("mkdir -p %s", path),
		fmt.Sprintf("cd %s", path),
		"git init",
		fmt.Sprintf("echo '# %s' > README.md", path),
		"git add README.md",
		"git commit -m 'Initial commit'",
	}
}

func (g *Git) commitLoop(repoPath string) []string {
	msgs := []string{"Fix typo", "Update logic", "Refactor module", "Add logging", "Bugfix"}
	files := []string{"main.py", "utils.py", "config.json", "README.md"}
	return []string{
		fmt.Sprintf("cd %s", repoPath),
		"git status",
		fmt.Sprintf("touch %s", files[g.rng.Intn(len(files))]),
		"git add .",
		fmt.Sprintf("git commit -m '%s'", msgs[g.rng.Intn(len(msgs))]),
		"git push origin main",
	}
}

func (g *Git) inspection(repoPath string) []string {
	return []string{
		fmt.Sprintf("cd %s", repoPath),
		"git status",
		"git log -n 3",
		"git diff",
	}
}
