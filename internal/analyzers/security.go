package analyzers

import (
	"context"
	"path"
	"regexp"
	"strings"

	t "repolens/internal/types"
)

const maxSecurityFindings = 100

// contentRule matches a suspicious line of source. Descriptions never echo
// the matched text: a finding quoting a secret would re-leak it.
type contentRule struct {
	pattern        *regexp.Regexp
	severity       t.Severity
	description    string
	recommendation string
}

var contentRules = []contentRule{
	{
		pattern:        regexp.MustCompile(`(?i)(api[_-]?key|secret|password|passwd|token)\s*[:=]\s*['"][^'"]{8,}['"]`),
		severity:       t.SeverityHigh,
		description:    "Hardcoded credential assigned to a secret-like variable",
		recommendation: "Move the value into environment configuration and rotate it.",
	},
	{
		pattern:        regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		severity:       t.SeverityCritical,
		description:    "AWS access key ID embedded in source",
		recommendation: "Revoke the key and switch to an instance role or secret manager.",
	},
	{
		pattern:        regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`),
		severity:       t.SeverityCritical,
		description:    "Private key material committed to the repository",
		recommendation: "Remove the key from history and issue a new one.",
	},
	{
		pattern:        regexp.MustCompile(`\beval\s*\(`),
		severity:       t.SeverityHigh,
		description:    "Dynamic code evaluation via eval",
		recommendation: "Replace eval with explicit parsing or a lookup table.",
	},
	{
		pattern:        regexp.MustCompile(`\b(?:execSync|exec|system|popen)\s*\([^)]*\+`),
		severity:       t.SeverityHigh,
		description:    "Shell command assembled from concatenated input",
		recommendation: "Pass arguments as a list and validate user-supplied parts.",
	},
	{
		pattern:        regexp.MustCompile(`(?i)\b(select|insert\s+into|update|delete\s+from)\b[^;]*['"]\s*\+`),
		severity:       t.SeverityHigh,
		description:    "SQL statement built by string concatenation",
		recommendation: "Use parameterized queries instead of concatenating values.",
	},
	{
		pattern:        regexp.MustCompile(`\.innerHTML\s*=`),
		severity:       t.SeverityMedium,
		description:    "Direct innerHTML assignment",
		recommendation: "Use textContent or a sanitizer before inserting markup.",
	},
	{
		pattern:        regexp.MustCompile(`dangerouslySetInnerHTML`),
		severity:       t.SeverityMedium,
		description:    "React dangerouslySetInnerHTML usage",
		recommendation: "Sanitize the HTML or render the data as text.",
	},
	{
		pattern:        regexp.MustCompile(`(?i)(verify\s*=\s*False|InsecureSkipVerify\s*:\s*true|rejectUnauthorized\s*:\s*false)`),
		severity:       t.SeverityMedium,
		description:    "TLS certificate verification disabled",
		recommendation: "Enable certificate verification outside local development.",
	},
	{
		pattern:        regexp.MustCompile(`(?i)\bmd5\s*\(|crypto/md5|hashlib\.md5`),
		severity:       t.SeverityLow,
		description:    "MD5 used as a hash function",
		recommendation: "Use SHA-256 or a dedicated password hash where applicable.",
	},
}

// pathRule flags sensitive files by location alone; these fire even when
// the catalog carries no content for the file.
type pathRule struct {
	match          func(path string) bool
	severity       t.Severity
	description    string
	recommendation string
}

var pathRules = []pathRule{
	{
		match: func(p string) bool {
			base := path.Base(p)
			if base == ".env.example" || base == ".env.sample" {
				return false
			}
			return base == ".env" || strings.HasPrefix(base, ".env.")
		},
		severity:       t.SeverityMedium,
		description:    "Environment file committed to the repository",
		recommendation: "Ignore .env files in version control and distribute secrets out of band.",
	},
	{
		match: func(p string) bool {
			return strings.HasSuffix(p, ".pem") || strings.HasSuffix(p, ".key") || strings.Contains(p, "id_rsa")
		},
		severity:       t.SeverityHigh,
		description:    "Key material file tracked in the repository",
		recommendation: "Remove the file and load keys from a secret store at runtime.",
	},
}

// Security scans the catalog for insecure patterns and committed secrets.
func Security(ctx context.Context, files []t.FileRecord) ([]t.SecurityFinding, error) {
	var findings []t.SecurityFinding
	for i, f := range files {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		if len(findings) >= maxSecurityFindings {
			break
		}
		for _, rule := range pathRules {
			if rule.match(f.Path) {
				findings = append(findings, t.SecurityFinding{
					Severity:       rule.severity,
					File:           f.Path,
					Description:    rule.description,
					Recommendation: rule.recommendation,
				})
			}
		}
		if f.Content == "" {
			continue
		}
		scanLines(f.Content, func(lineNo int, line string) {
			if len(findings) >= maxSecurityFindings {
				return
			}
			for _, rule := range contentRules {
				if rule.pattern.MatchString(line) {
					findings = append(findings, t.SecurityFinding{
						Severity:       rule.severity,
						File:           f.Path,
						Line:           lineNo,
						Description:    rule.description,
						Recommendation: rule.recommendation,
					})
					break
				}
			}
		})
	}
	sortSecurity(findings)
	return findings, nil
}
