// Package github materializes a GitHub repository as a local snapshot.
//
// The snapshot of owner/repo at a branch lives under
// <base_path>/<owner>/<repo>. An existing snapshot is reused unless a
// refresh is forced; otherwise the branch tarball is downloaded through the
// archive link API and extracted in place of the old tree.
//
// # Components
//
//   - Materializer: implements [driven.SourceMaterializer], retrying transient
//     failures with a fixed delay
//   - Client: wraps go-github and downloads archives
//   - RateLimiter: proactive token bucket plus the X-RateLimit-* headers
//
// # Authentication
//
// A personal access token (GITHUB_TOKEN) is optional for public repositories
// and required for private ones. Unauthenticated requests are limited to 60
// per hour.
//
// # Extraction
//
// Archive entries are written relative to the snapshot root with the
// top-level "<owner>-<repo>-<sha>/" directory stripped. Entries that would
// land outside the root are rejected; links are not created.
package github
