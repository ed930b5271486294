package repoargs

type RepositoryName string

const (
	UserRepoName        RepositoryName = "user"
	BalanceRepoName     RepositoryName = "balance"
	TransactionRepoName RepositoryName = "transaction"
	OperationRepoName   RepositoryName = "operation"
)
