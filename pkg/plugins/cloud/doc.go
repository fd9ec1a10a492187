// Package cloud detects whether the host runs on a cloud provider that
// serves an instance metadata endpoint, and ingests that metadata.
//
// Each provider is a plugin built from the same staged probe:
//
//  1. Hint check: a hint file for the provider forces detection; a hint
//     for a mutually exclusive provider rules it out.
//  2. Heuristic check: the network plugin's ARP entries must contain a MAC
//     address matching the provider's signature.
//  3. Reachability probe: a bounded connection attempt to the metadata
//     address.
//  4. Recursive fetch of the metadata tree, committed to the store only
//     when every request succeeds.
//  5. User data fetch, stored only on HTTP 200.
//
// The cloud plugin summarizes the detected provider under the "cloud" key.
package cloud
